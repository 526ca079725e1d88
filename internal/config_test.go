package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		JwtSecret:            "0123456789abcdef",
		SweepInterval:        time.Minute,
		SnapshotInterval:     10 * time.Second,
		WarningFirstFraction: 0.25,
		WarningFinalFraction: 0.83,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "should accept defaults", mutate: func(c *Config) {}},
		{name: "should refuse inverted fractions", mutate: func(c *Config) {
			c.WarningFirstFraction, c.WarningFinalFraction = 0.9, 0.5
		}, wantErr: true},
		{name: "should refuse a final fraction of one", mutate: func(c *Config) { c.WarningFinalFraction = 1 }, wantErr: true},
		{name: "should refuse a zero sweep interval", mutate: func(c *Config) { c.SweepInterval = 0 }, wantErr: true},
		{name: "should refuse a short secret", mutate: func(c *Config) { c.JwtSecret = "short" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_FromEnviron(t *testing.T) {
	req := require.New(t)
	for k, v := range map[string]string{
		"PORT":                      "8080",
		"GRPC_PORT":                 "9090",
		"LOG_LEVEL":                 "INFO",
		"BADGER_FILEPATH":           "/tmp/quiz",
		"JWT_SECRET":                "0123456789abcdef",
		"AUTH_TOKEN_DURATION":       "1h",
		"RESTART_INTERVAL":          "1s",
		"SWEEP_INTERVAL":            "1m",
		"CLEANUP_FINISHED_TIMEOUT":  "30",
		"CLEANUP_WAITING_TIMEOUT":   "60",
		"CLEANUP_CANCELLED_TIMEOUT": "15",
		"CLEANUP_ACTIVE_TIMEOUT":    "180",
		"MIN_ROOM_AGE":              "5m",
		"MAX_DELETIONS_PER_CYCLE":   "50",
		"MAX_WARNINGS_PER_CYCLE":    "100",
		"MAX_PLAYERS":               "500",
		"HOST_GRACE_PERIOD":         "60s",
		"ABANDONED_RETENTION":       "5m",
		"SNAPSHOT_INTERVAL":         "10s",
	} {
		t.Setenv(k, v)
	}

	var c Config
	_, err := env.UnmarshalFromEnviron(&c)

	req.NoError(err)
	req.NoError(c.Validate())
	req.Equal("localhost", c.Host)
	req.Equal(8080, c.Port)
	req.Equal(time.Hour, c.AuthTokenDuration)
	req.Equal(0.25, c.WarningFirstFraction)
	req.Equal(24*time.Hour, c.SnapshotRetention)
	req.Equal(3*time.Hour, Minutes(c.CleanupActiveMin))
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("€")
	req.NoError(err)
	req.Equal('€', r)

	_, err = CharacterRune("**")
	req.Error(err)
	_, err = CharacterRune("")
	req.Error(err)
}
