package config

// Config holds runtime settings for the sentinel CLI.
//
// Fields:
//   - ServerAddr: base URL of the backend REST API.
//   - WsAddr: base URL of the websocket endpoint.
//   - CacheDSN: sqlite DSN of the local message/key cache.
type Config struct {
	ServerAddr string
	WsAddr     string
	CacheDSN   string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8000"
	c.WsAddr = "ws://127.0.0.1:8000"
	c.CacheDSN = "sentinel.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
