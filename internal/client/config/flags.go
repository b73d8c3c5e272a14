package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/dares/internal/flagx"
)

var flagNames = []string{"-b", "-d", "-u", "-dsn", "-s", "-r", "-l"}

// parseFlags populates selected Config fields from command-line flags. Only
// the flags listed in the package doc are looked at; anything else in args
// belongs to another component.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, flagNames)

	fs := flag.NewFlagSet("dares", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.IdentityBackend, "b", cfg.IdentityBackend, "identity backend (firebase|local)")
	fs.StringVar(&cfg.DatastoreBackend, "d", cfg.DatastoreBackend, "datastore backend (postgrest|sqlite|postgres)")
	fs.StringVar(&cfg.DatastoreURL, "u", cfg.DatastoreURL, "datastore REST base URL")
	fs.StringVar(&cfg.DatastoreDSN, "dsn", cfg.DatastoreDSN, "datastore DSN")
	fs.StringVar(&cfg.SessionDB, "s", cfg.SessionDB, "local session database")
	fs.DurationVar(&cfg.RefreshInterval, "r", cfg.RefreshInterval, "token refresh interval")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	return fs.Parse(args)
}
