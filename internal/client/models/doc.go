// Package models defines the records the client reads from and writes to
// the datastore, plus input normalization for user-editable fields.
package models

// Datastore table names.
const (
	TableProfiles    = "profiles"
	TableChallenges  = "challenges"
	TableCompletions = "completions"
	TableLocations   = "locations"
)
