package config

import "time"

// Config holds runtime settings for the journal client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - EventsURL: websocket URL of the realtime analysis feed.
//   - DatabasePath: local SQLite file; ":memory:" keeps everything in RAM.
//   - SessionFile: JSON file holding the signed-in session, watched for changes.
//   - LogFile: rotating log file; the REPL keeps stdout for itself.
//   - SyncCooldown: minimum spacing of non-forced sync passes.
//   - OnlineCheckInterval: how often the client probes server reachability.
type Config struct {
	ServerEndpointAddr  string
	EventsURL           string
	DatabasePath        string
	SessionFile         string
	LogFile             string
	SyncCooldown        time.Duration
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.EventsURL = "ws://127.0.0.1:8080/events"
	c.DatabasePath = "cbtjournal.db"
	c.SessionFile = "session.json"
	c.LogFile = "cbtjournal.log"
	c.SyncCooldown = 5 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file (if given) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
