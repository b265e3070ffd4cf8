package weather

// Condition WMO 天气代码对应的描述和图标
type Condition struct {
	Description string
	Icon        string
}

var unknown = Condition{"Unknown", "🌡️"}

var conditions = map[int]Condition{
	0:  {"Clear sky", "☀️"},
	1:  {"Partly cloudy", "⛅"},
	2:  {"Partly cloudy", "⛅"},
	3:  {"Partly cloudy", "⛅"},
	45: {"Foggy", "🌫️"},
	48: {"Foggy", "🌫️"},
	51: {"Drizzle", "🌦️"},
	53: {"Drizzle", "🌦️"},
	55: {"Drizzle", "🌦️"},
	61: {"Rain", "🌧️"},
	63: {"Rain", "🌧️"},
	65: {"Rain", "🌧️"},
	71: {"Snow", "❄️"},
	73: {"Snow", "❄️"},
	75: {"Snow", "❄️"},
	77: {"Snow grains", "🌨️"},
	80: {"Rain showers", "🌧️"},
	81: {"Rain showers", "🌧️"},
	82: {"Rain showers", "🌧️"},
	85: {"Snow showers", "🌨️"},
	86: {"Snow showers", "🌨️"},
	95: {"Thunderstorm", "⛈️"},
	96: {"Thunderstorm with hail", "⛈️"},
	99: {"Thunderstorm with hail", "⛈️"},
}

func Lookup(code int) Condition {
	if c, ok := conditions[code]; ok {
		return c
	}
	return unknown
}
