package api

// City is a preset map marker.
type City struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Dataset is a reference card for a public environmental dataset.
type Dataset struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

var majorCities = []City{
	{Name: "New York, NY", Lat: 40.7128, Lon: -74.0060},
	{Name: "Los Angeles, CA", Lat: 34.0522, Lon: -118.2437},
	{Name: "Chicago, IL", Lat: 41.8781, Lon: -87.6298},
	{Name: "Houston, TX", Lat: 29.7604, Lon: -95.3698},
	{Name: "Phoenix, AZ", Lat: 33.4484, Lon: -112.0742},
}

var datasets = []Dataset{
	{
		Title:       "EPA Environmental Justice Screen (EJScreen)",
		Description: "EPA's official EJ mapping tool with 11+ environmental burden indicators",
		Link:        "https://www.epa.gov/ejscreen",
	},
	{
		Title:       "EPA Air Quality Data",
		Description: "Real-time air quality data from EPA monitoring stations",
		Link:        "https://www.epa.gov/airdata",
	},
	{
		Title:       "CDC Environmental Justice Index",
		Description: "CDC data on health disparities and environmental factors",
		Link:        "https://www.atsdr.cdc.gov/place-health/php/eji/",
	},
	{
		Title:       "NOAA Climate Data",
		Description: "National climate and weather data for environmental analysis",
		Link:        "https://www.ncei.noaa.gov/products/climate-data/",
	},
}
