package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.json", "-a", "localhost"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "flag with equals",
			args:         []string{"-config=alt.yaml", "-a", "localhost"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-config=alt.yaml"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "-y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "trailing flag without value",
			args:         []string{"-k"},
			allowedFlags: []string{"-k"},
			want:         []string{"-k"},
		},
		{
			name:         "dash token is not a value",
			args:         []string{"-d", "-w", "ws://x"},
			allowedFlags: []string{"-d", "-w"},
			want:         []string{"-d", "-w", "ws://x"},
		},
		{
			name:         "client flag set",
			args:         []string{"-a", "127.0.0.1:50051", "-s", "session.json", "-z", "1", "-k", "5"},
			allowedFlags: []string{"-a", "-s", "-k"},
			want:         []string{"-a", "127.0.0.1:50051", "-s", "session.json", "-k", "5"},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	assert.Equal(t, "/etc/journal.json", ConfigFileFlag([]string{"-c", "/etc/journal.json"}))
	assert.Equal(t, "journal.yaml", ConfigFileFlag([]string{"-a", "x", "-config", "journal.yaml"}))
	assert.Equal(t, "", ConfigFileFlag([]string{"-x", "1"}))
	assert.Equal(t, "2.json", ConfigFileFlag([]string{"-c", "1.json", "-config", "2.json"}))
}
