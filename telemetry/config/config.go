// Separate package is workaround to import cycles.
package telemetry_config

type Config struct { //nolint:maligned
	Enabled             bool   `hcl:"enable"`
	LogDebug            bool   `hcl:"log_debug"`
	KeepaliveSec        int    `hcl:"keepalive_sec"`
	MqttBroker          string `hcl:"mqtt_broker"`
	MqttLogDebug        bool   `hcl:"mqtt_log_debug"`
	MqttPassword        string `hcl:"mqtt_password"` // secret
	NetworkTimeoutSec   int    `hcl:"network_timeout_sec"`
	ReconnectIntervalMs int    `hcl:"reconnect_interval_ms"`
	TlsCaFile           string `hcl:"tls_ca_file"`
	TlsSkipVerify       bool   `hcl:"tls_skip_verify"`

	DeviceID    string `hcl:"-"`
	PersistPath string `hcl:"-"`
}
