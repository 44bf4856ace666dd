package telemetry

// Record is one telemetry snapshot. Immutable after creation, identified
// only by queue position while cached. Field set is stable across ticks so
// serialization and caching never deal with per-record schema.
type Record struct {
	Device  string  `json:"device"`
	Seq     uint64  `json:"seq"`
	Time    int64   `json:"time"` // unix nanoseconds
	Ambient Ambient `json:"ambient"`
	Power   Power   `json:"power"`
	Link    Link    `json:"link"`
}

type Ambient struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	PressureHPa  float64 `json:"pressure_hpa"`
}

type Power struct {
	BatteryV   float64 `json:"battery_v"`
	BatteryPct int     `json:"battery_pct"`
}

type Link struct {
	RSSI int `json:"rssi"`
}
