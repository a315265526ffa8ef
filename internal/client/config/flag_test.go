package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd", "-a", "127.0.0.1:9090", "-w", "ws://h/events", "-d", ":memory:",
				"-s", "/tmp/s.json", "-l", "/tmp/c.log", "-k", "7", "-i", "10"},
			expected: &Config{
				ServerEndpointAddr:  "127.0.0.1:9090",
				EventsURL:           "ws://h/events",
				DatabasePath:        ":memory:",
				SessionFile:         "/tmp/s.json",
				LogFile:             "/tmp/c.log",
				SyncCooldown:        7 * time.Second,
				OnlineCheckInterval: 10 * time.Second,
			},
		},
		{
			name:     "foreign flags ignored",
			args:     []string{"cmd", "-c", "x.json", "-a", "h:1", "-verbose"},
			expected: &Config{ServerEndpointAddr: "h:1"},
		},
		{name: "incorrect check interval", args: []string{"cmd", "-i", "abc"}, expectPanic: true},
		{name: "incorrect cooldown", args: []string{"cmd", "-k", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
