package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("", nil)

	require.NoError(t, err)
	assert.Empty(t, s.CatalogDir)
	assert.Equal(t, "setup", s.SessionName)
	assert.Equal(t, DefaultWaitSeconds, s.WaitSeconds)
	assert.Equal(t, 5*time.Minute, s.InstallTimeout)
	assert.Equal(t, 3*time.Second, s.PollInterval)
	assert.Equal(t, "tmux", s.TmuxBinary)
	assert.False(t, s.Debug)
}

func TestLoad_Environment(t *testing.T) {
	s, err := Load("", []string{
		"RIGUP_CATALOG=/opt/rigup/capabilities",
		"RIGUP_SESSION=onboard",
		"RIGUP_WAIT_SECONDS=300",
		"RIGUP_INSTALL_TIMEOUT=90s",
		"RIGUP_DEBUG=true",
		"UNRELATED=1",
	})

	require.NoError(t, err)
	assert.Equal(t, "/opt/rigup/capabilities", s.CatalogDir)
	assert.Equal(t, "onboard", s.SessionName)
	assert.Equal(t, 300, s.WaitSeconds)
	assert.Equal(t, 90*time.Second, s.InstallTimeout)
	assert.True(t, s.Debug)
}

func TestLoad_EnvFileIsOverriddenByEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "RIGUP_SESSION=from-file\nRIGUP_WAIT_SECONDS=60\n# comment\nRIGUP_TMUX=/usr/local/bin/tmux\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Load(path, []string{"RIGUP_SESSION=from-env"})

	require.NoError(t, err)
	assert.Equal(t, "from-env", s.SessionName)
	assert.Equal(t, 60, s.WaitSeconds)
	assert.Equal(t, "/usr/local/bin/tmux", s.TmuxBinary)
	_, leaked := os.LookupEnv("RIGUP_TMUX")
	assert.False(t, leaked, "env file must not be exported into the process")
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading env file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		want    string
	}{
		{"bad int", []string{"RIGUP_WAIT_SECONDS=soon"}, "parsing settings"},
		{"bad duration", []string{"RIGUP_POLL_INTERVAL=fast"}, "parsing settings"},
		{"zero timeout", []string{"RIGUP_INSTALL_TIMEOUT=0s"}, "install timeout must be positive"},
		{"negative poll", []string{"RIGUP_POLL_INTERVAL=-1s"}, "poll interval must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("", tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClampWait(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultWaitSeconds},
		{1, MinWaitSeconds},
		{-5, MinWaitSeconds},
		{10, 10},
		{120, 120},
		{900, 900},
		{901, MaxWaitSeconds},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampWait(tt.in), "ClampWait(%d)", tt.in)
	}
}
