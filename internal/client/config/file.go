package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cbtjournal/internal/flagx"
	"github.com/dmitrijs2005/cbtjournal/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the client configuration. Pointer
// fields distinguish "absent" from "empty".
type FileConfig struct {
	ServerEndpointAddr  *string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	EventsURL           *string         `json:"events_url" yaml:"events_url"`
	DatabasePath        *string         `json:"database_path" yaml:"database_path"`
	SessionFile         *string         `json:"session_file" yaml:"session_file"`
	LogFile             *string         `json:"log_file" yaml:"log_file"`
	SyncCooldown        *timex.Duration `json:"sync_cooldown" yaml:"sync_cooldown"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
}

// parseFile overlays cfg with the file named by -c/-config. Without either
// flag it does nothing. Read or decode errors panic.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func (fc FileConfig) apply(cfg *Config) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&cfg.ServerEndpointAddr, fc.ServerEndpointAddr)
	setString(&cfg.EventsURL, fc.EventsURL)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.SessionFile, fc.SessionFile)
	setString(&cfg.LogFile, fc.LogFile)

	if fc.SyncCooldown != nil {
		cfg.SyncCooldown = fc.SyncCooldown.Duration
	}
	if fc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
}
