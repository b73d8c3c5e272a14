package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/dares/internal/flagx"
	"github.com/dmitrijs2005/dares/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Empty
// fields leave the runtime Config untouched.
type JsonConfig struct {
	IdentityBackend    string `json:"identity_backend"`
	IdentityAPIKey     string `json:"identity_api_key"`
	IdentityAuthDomain string `json:"identity_auth_domain"`
	IdentityProjectID  string `json:"identity_project_id"`
	IdentityEndpoint   string `json:"identity_endpoint"`
	TokenEndpoint      string `json:"token_endpoint"`
	LocalSigningKey    string `json:"local_signing_key"`

	DatastoreBackend string `json:"datastore_backend"`
	DatastoreURL     string `json:"datastore_url"`
	DatastoreAnonKey string `json:"datastore_anon_key"`
	DatastoreDSN     string `json:"datastore_dsn"`

	StorageBucket    string `json:"storage_bucket"`
	StorageRegion    string `json:"storage_region"`
	StorageEndpoint  string `json:"storage_endpoint"`
	StorageAccessKey string `json:"storage_access_key"`
	StorageSecretKey string `json:"storage_secret_key"`
	StoragePublicURL string `json:"storage_public_url"`

	SessionDB        string          `json:"session_db"`
	RefreshInterval  *timex.Duration `json:"refresh_interval"`
	LivenessInterval *timex.Duration `json:"liveness_interval"`
	HTTPTimeout      *timex.Duration `json:"http_timeout"`
	LogLevel         string          `json:"log_level"`
}

// parseJson overlays cfg with the JSON file named by -c or -config in args.
// No flag means nothing to do.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.IdentityBackend, jc.IdentityBackend)
	set(&cfg.IdentityAPIKey, jc.IdentityAPIKey)
	set(&cfg.IdentityAuthDomain, jc.IdentityAuthDomain)
	set(&cfg.IdentityProjectID, jc.IdentityProjectID)
	set(&cfg.IdentityEndpoint, jc.IdentityEndpoint)
	set(&cfg.TokenEndpoint, jc.TokenEndpoint)
	set(&cfg.LocalSigningKey, jc.LocalSigningKey)
	set(&cfg.DatastoreBackend, jc.DatastoreBackend)
	set(&cfg.DatastoreURL, jc.DatastoreURL)
	set(&cfg.DatastoreAnonKey, jc.DatastoreAnonKey)
	set(&cfg.DatastoreDSN, jc.DatastoreDSN)
	set(&cfg.StorageBucket, jc.StorageBucket)
	set(&cfg.StorageRegion, jc.StorageRegion)
	set(&cfg.StorageEndpoint, jc.StorageEndpoint)
	set(&cfg.StorageAccessKey, jc.StorageAccessKey)
	set(&cfg.StorageSecretKey, jc.StorageSecretKey)
	set(&cfg.StoragePublicURL, jc.StoragePublicURL)
	set(&cfg.SessionDB, jc.SessionDB)
	set(&cfg.LogLevel, jc.LogLevel)

	if jc.RefreshInterval != nil {
		cfg.RefreshInterval = jc.RefreshInterval.Duration
	}
	if jc.LivenessInterval != nil {
		cfg.LivenessInterval = jc.LivenessInterval.Duration
	}
	if jc.HTTPTimeout != nil {
		cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	}
	return nil
}
