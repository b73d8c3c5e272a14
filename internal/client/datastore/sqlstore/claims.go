package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/golang-jwt/jwt/v5"
)

// anonClaims is published for clients without a token.
const anonClaims = `{"role":"anon"}`

// claimsJSON extracts the token's claims without verifying the signature;
// verification belongs to whoever issued the token. A missing role is
// filled in as "authenticated".
func claimsJSON(token string) (string, error) {
	if token == "" {
		return anonClaims, nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", &datastore.Error{Code: datastore.CodeJWTExpired, Message: fmt.Sprintf("invalid bearer token: %v", err), Status: 401}
	}
	if _, ok := claims["role"]; !ok {
		claims["role"] = "authenticated"
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode claims: %w", err)
	}
	return string(b), nil
}
