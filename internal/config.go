package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,required=true"`
	GrpcPort          int           `env:"GRPC_PORT,required=true"`
	DebugPort         int           `env:"DEBUG_PORT,default=0"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	DevAuth           bool          `env:"DEV_AUTH,default=false"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=5s"`

	SweepInterval        time.Duration `env:"SWEEP_INTERVAL,required=true"`
	CleanupFinishedMin   int           `env:"CLEANUP_FINISHED_TIMEOUT,required=true"`
	CleanupWaitingMin    int           `env:"CLEANUP_WAITING_TIMEOUT,required=true"`
	CleanupCancelledMin  int           `env:"CLEANUP_CANCELLED_TIMEOUT,required=true"`
	CleanupActiveMin     int           `env:"CLEANUP_ACTIVE_TIMEOUT,required=true"`
	WarningFirstFraction float64       `env:"WARNING_FIRST_FRACTION,default=0.25"`
	WarningFinalFraction float64       `env:"WARNING_FINAL_FRACTION,default=0.83"`
	MinRoomAge           time.Duration `env:"MIN_ROOM_AGE,required=true"`
	MaxDeletionsPerCycle int           `env:"MAX_DELETIONS_PER_CYCLE,required=true"`
	MaxWarningsPerCycle  int           `env:"MAX_WARNINGS_PER_CYCLE,required=true"`
	MaxPlayers           int           `env:"MAX_PLAYERS,required=true"`
	HostGracePeriod      time.Duration `env:"HOST_GRACE_PERIOD,required=true"`
	AbandonedRetention   time.Duration `env:"ABANDONED_RETENTION,required=true"`
	SnapshotInterval     time.Duration `env:"SNAPSHOT_INTERVAL,required=true"`
	SnapshotRetention    time.Duration `env:"SNAPSHOT_RETENTION,default=24h"`
}

// Validate checks what struct tags cannot express.
func (c Config) Validate() error {
	if c.WarningFirstFraction <= 0 || c.WarningFinalFraction >= 1 || c.WarningFirstFraction >= c.WarningFinalFraction {
		return fmt.Errorf("warning fractions must satisfy 0 < first < final < 1, got %v and %v",
			c.WarningFirstFraction, c.WarningFinalFraction)
	}
	if c.SweepInterval <= 0 || c.SnapshotInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL and SNAPSHOT_INTERVAL must be positive")
	}
	if len(c.JwtSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	return nil
}

func Minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
