package metadata

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/dares/internal/client/identity"
	"github.com/dmitrijs2005/dares/internal/dbx"
)

const (
	keySessionUID     = "session.uid"
	keySessionEmail   = "session.email"
	keySessionRefresh = "session.refresh_token"
)

// SessionStore persists the identity session as metadata entries.
type SessionStore struct {
	db *sql.DB
}

var _ identity.SessionStore = (*SessionStore)(nil)

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Load returns (nil, nil) when no session is stored.
func (s *SessionStore) Load(ctx context.Context) (*identity.Session, error) {
	repo := NewSQLiteRepository(s.db)
	rt, err := repo.Get(ctx, keySessionRefresh)
	if err != nil {
		return nil, err
	}
	if len(rt) == 0 {
		return nil, nil
	}
	uid, err := repo.Get(ctx, keySessionUID)
	if err != nil {
		return nil, err
	}
	email, err := repo.Get(ctx, keySessionEmail)
	if err != nil {
		return nil, err
	}
	return &identity.Session{UID: string(uid), Email: string(email), RefreshToken: string(rt)}, nil
}

// Save writes all session keys in one transaction.
func (s *SessionStore) Save(ctx context.Context, sess identity.Session) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLiteRepository(tx)
		values := map[string]string{
			keySessionUID:     sess.UID,
			keySessionEmail:   sess.Email,
			keySessionRefresh: sess.RefreshToken,
		}
		for k, v := range values {
			// empty values are stored as absent keys
			if v == "" {
				if err := repo.Delete(ctx, k); err != nil {
					return err
				}
				continue
			}
			if err := repo.Set(ctx, k, []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear removes the session keys and leaves other metadata alone.
func (s *SessionStore) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLiteRepository(tx)
		for _, k := range []string{keySessionUID, keySessionEmail, keySessionRefresh} {
			if err := repo.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}
