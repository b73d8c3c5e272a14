package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/dares/internal/common"
)

// Backend names.
const (
	IdentityFirebase = "firebase"
	IdentityLocal    = "local"

	DatastorePostgREST = "postgrest"
	DatastoreSQLite    = "sqlite"
	DatastorePostgres  = "postgres"
)

// Config holds runtime settings for the dares CLI.
type Config struct {
	IdentityBackend    string `env:"DARES_IDENTITY_BACKEND"`
	IdentityAPIKey     string `env:"DARES_IDENTITY_API_KEY"`
	IdentityAuthDomain string `env:"DARES_IDENTITY_AUTH_DOMAIN"`
	IdentityProjectID  string `env:"DARES_IDENTITY_PROJECT_ID"`
	IdentityEndpoint   string `env:"DARES_IDENTITY_ENDPOINT"`
	TokenEndpoint      string `env:"DARES_TOKEN_ENDPOINT"`
	LocalSigningKey    string `env:"DARES_LOCAL_SIGNING_KEY"`

	DatastoreBackend string `env:"DARES_DATASTORE_BACKEND"`
	DatastoreURL     string `env:"DARES_DATASTORE_URL"`
	DatastoreAnonKey string `env:"DARES_DATASTORE_ANON_KEY"`
	DatastoreDSN     string `env:"DARES_DATASTORE_DSN"`

	StorageBucket    string `env:"DARES_STORAGE_BUCKET"`
	StorageRegion    string `env:"DARES_STORAGE_REGION"`
	StorageEndpoint  string `env:"DARES_STORAGE_ENDPOINT"`
	StorageAccessKey string `env:"DARES_STORAGE_ACCESS_KEY"`
	StorageSecretKey string `env:"DARES_STORAGE_SECRET_KEY"`
	StoragePublicURL string `env:"DARES_STORAGE_PUBLIC_URL"`

	SessionDB        string        `env:"DARES_SESSION_DB"`
	RefreshInterval  time.Duration `env:"DARES_REFRESH_INTERVAL"`
	LivenessInterval time.Duration `env:"DARES_LIVENESS_INTERVAL"`
	HTTPTimeout      time.Duration `env:"DARES_HTTP_TIMEOUT"`
	LogLevel         string        `env:"DARES_LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.IdentityBackend = IdentityFirebase
	c.DatastoreBackend = DatastorePostgREST
	c.StorageRegion = "us-east-1"
	c.SessionDB = "dares-session.db"
	c.RefreshInterval = common.DefaultRefreshInterval
	c.LivenessInterval = common.DefaultLivenessInterval
	c.HTTPTimeout = 15 * time.Second
	c.LogLevel = "info"
}

// LoadConfig builds a Config from defaults, the environment, an optional
// JSON file and os.Args, in that order of precedence. It fails only when a
// source cannot be parsed; use Validate for missing values.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Error lists configuration values that are missing or invalid.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, "; "))
	}
	return "configuration: " + strings.Join(parts, "; ")
}

// Is matches common.ErrConfiguration.
func (e *Error) Is(target error) bool {
	return target == common.ErrConfiguration
}

// Validate checks that every value the selected backends need is present.
func (c *Config) Validate() error {
	e := &Error{}
	require := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			e.Missing = append(e.Missing, name)
		}
	}

	switch c.IdentityBackend {
	case IdentityFirebase:
		require("DARES_IDENTITY_API_KEY", c.IdentityAPIKey)
	case IdentityLocal:
		require("DARES_LOCAL_SIGNING_KEY", c.LocalSigningKey)
	default:
		e.Invalid = append(e.Invalid, fmt.Sprintf("DARES_IDENTITY_BACKEND=%q (want firebase or local)", c.IdentityBackend))
	}

	switch c.DatastoreBackend {
	case DatastorePostgREST:
		require("DARES_DATASTORE_URL", c.DatastoreURL)
		require("DARES_DATASTORE_ANON_KEY", c.DatastoreAnonKey)
	case DatastoreSQLite, DatastorePostgres:
		require("DARES_DATASTORE_DSN", c.DatastoreDSN)
	default:
		e.Invalid = append(e.Invalid, fmt.Sprintf("DARES_DATASTORE_BACKEND=%q (want postgrest, sqlite or postgres)", c.DatastoreBackend))
	}

	if (c.StorageAccessKey == "") != (c.StorageSecretKey == "") {
		e.Invalid = append(e.Invalid, "DARES_STORAGE_ACCESS_KEY and DARES_STORAGE_SECRET_KEY must be set together")
	}
	require("DARES_SESSION_DB", c.SessionDB)

	for name, d := range map[string]time.Duration{
		"DARES_REFRESH_INTERVAL":  c.RefreshInterval,
		"DARES_LIVENESS_INTERVAL": c.LivenessInterval,
		"DARES_HTTP_TIMEOUT":      c.HTTPTimeout,
	} {
		if d <= 0 {
			e.Invalid = append(e.Invalid, fmt.Sprintf("%s must be positive", name))
		}
	}

	if len(e.Missing) == 0 && len(e.Invalid) == 0 {
		return nil
	}
	slices.Sort(e.Invalid)
	return e
}

// StorageEnabled reports whether proof uploads are configured.
func (c *Config) StorageEnabled() bool {
	return c.StorageBucket != ""
}

// AsError unwraps a *Error from err.
func AsError(err error) (*Error, bool) {
	var ce *Error
	ok := errors.As(err, &ce)
	return ce, ok
}
