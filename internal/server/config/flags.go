package config

import (
	"flag"
	"os"
	"time"

	"github.com/mberzins/chatd/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-t int      session token validity, hours
//	-i int      session cache sweep interval, minutes
//	-m int      default message read limit
//	-b          store bcrypt password hashes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-i", "-m", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	sessionValidity := fs.Int("t", int(config.SessionValidityDuration.Hours()), "session_validity_duration (in hours)")
	sweepInterval := fs.Int("i", int(config.SessionSweepInterval.Minutes()), "session_sweep_interval (in minutes)")

	fs.IntVar(&config.RecentMessageLimit, "m", config.RecentMessageLimit, "default message read limit")
	fs.BoolVar(&config.UseBcrypt, "b", config.UseBcrypt, "store bcrypt password hashes")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Hour
	config.SessionSweepInterval = time.Duration(*sweepInterval) * time.Minute
}
