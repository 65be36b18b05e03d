package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Sequence.Backend)
	assert.Equal(t, 295.0, cfg.Report.PageHeight)
	assert.Equal(t, "Maruti Nisarg Laboratory", cfg.Lab.Name)
	assert.Equal(t, DefaultDoctors, cfg.Lab.Doctors)
	assert.Equal(t, 2*time.Hour, cfg.Drafts.TTL)
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
lab:
  timezone: Asia/Kolkata
  doctors: ["Dr. A", "Dr. B"]
sequence:
  backend: redis
drafts:
  ttl: 30m
smtp:
  host: smtp.example.com
  from: lab@example.com
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Sequence.Backend)
	assert.Equal(t, []string{"Dr. A", "Dr. B"}, cfg.Lab.Doctors)
	assert.Equal(t, 30*time.Minute, cfg.Drafts.TTL)
	assert.True(t, cfg.SMTP.Enabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  password: from-file\n")
	t.Setenv("LABREPORT_DATABASE_PASSWORD", "from-env")
	t.Setenv("LABREPORT_SEQUENCE_BACKEND", "postgres")
	t.Setenv("LABREPORT_RATE_LIMIT_BURST", "5")
	t.Setenv("LABREPORT_REPORT_PIXELS_PER_MM", "4")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "postgres", cfg.Sequence.Backend)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 4.0, cfg.Report.PixelsPerMM)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"backend", "sequence:\n  backend: sqlite\n", "unknown sequence backend"},
		{"page height", "report:\n  page_height: 0\n", "page_height"},
		{"timezone", "lab:\n  timezone: Mars/Olympus\n", "invalid lab.timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
