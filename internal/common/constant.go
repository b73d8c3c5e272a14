package common

import "time"

// AuthorizationHeaderName carries the bearer credential on outbound
// datastore requests.
const AuthorizationHeaderName = "Authorization"

// APIKeyHeaderName carries the public datastore key alongside the bearer.
const APIKeyHeaderName = "apikey"

const (
	// DefaultRefreshInterval is half of the identity provider's 60 minute
	// token lifetime.
	DefaultRefreshInterval = 30 * time.Minute
	// DefaultLivenessInterval is how often last_seen is bumped.
	DefaultLivenessInterval = 5 * time.Minute
)
