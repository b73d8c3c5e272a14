package config

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/dares/internal/common"
)

// Setting is one line of the configuration report.
type Setting struct {
	Name  string
	Value string
	Set   bool
}

func (s Setting) String() string {
	if !s.Set {
		return fmt.Sprintf("%-28s not set", s.Name)
	}
	return fmt.Sprintf("%-28s %s", s.Name, s.Value)
}

// Status lists every setting by its environment name. Keys and secrets are
// masked down to a short prefix.
func (c *Config) Status() []Setting {
	plain := func(name, v string) Setting { return Setting{Name: name, Value: v, Set: v != ""} }
	secret := func(name, v string) Setting {
		return Setting{Name: name, Value: common.MaskSecret(v, 6), Set: v != ""}
	}
	dur := func(name string, v fmt.Stringer) Setting { return Setting{Name: name, Value: v.String(), Set: true} }

	return []Setting{
		plain("DARES_IDENTITY_BACKEND", c.IdentityBackend),
		secret("DARES_IDENTITY_API_KEY", c.IdentityAPIKey),
		plain("DARES_IDENTITY_AUTH_DOMAIN", c.IdentityAuthDomain),
		plain("DARES_IDENTITY_PROJECT_ID", c.IdentityProjectID),
		plain("DARES_IDENTITY_ENDPOINT", c.IdentityEndpoint),
		plain("DARES_TOKEN_ENDPOINT", c.TokenEndpoint),
		secret("DARES_LOCAL_SIGNING_KEY", c.LocalSigningKey),
		plain("DARES_DATASTORE_BACKEND", c.DatastoreBackend),
		plain("DARES_DATASTORE_URL", c.DatastoreURL),
		secret("DARES_DATASTORE_ANON_KEY", c.DatastoreAnonKey),
		secret("DARES_DATASTORE_DSN", c.DatastoreDSN),
		plain("DARES_STORAGE_BUCKET", c.StorageBucket),
		plain("DARES_STORAGE_REGION", c.StorageRegion),
		plain("DARES_STORAGE_ENDPOINT", c.StorageEndpoint),
		secret("DARES_STORAGE_ACCESS_KEY", c.StorageAccessKey),
		secret("DARES_STORAGE_SECRET_KEY", c.StorageSecretKey),
		plain("DARES_STORAGE_PUBLIC_URL", c.StoragePublicURL),
		plain("DARES_SESSION_DB", c.SessionDB),
		dur("DARES_REFRESH_INTERVAL", c.RefreshInterval),
		dur("DARES_LIVENESS_INTERVAL", c.LivenessInterval),
		dur("DARES_HTTP_TIMEOUT", c.HTTPTimeout),
		plain("DARES_LOG_LEVEL", c.LogLevel),
	}
}

// StatusReport renders Status one setting per line.
func (c *Config) StatusReport() string {
	var b strings.Builder
	for _, s := range c.Status() {
		b.WriteString(s.String())
		b.WriteByte('\n')
	}
	return b.String()
}
