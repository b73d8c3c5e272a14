package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/config"
	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/datastore/postgrest"
	"github.com/dmitrijs2005/dares/internal/client/datastore/sqlstore"
	"github.com/dmitrijs2005/dares/internal/client/identity"
	"github.com/dmitrijs2005/dares/internal/client/identity/firebase"
	"github.com/dmitrijs2005/dares/internal/client/identity/local"
	"github.com/dmitrijs2005/dares/internal/client/localdb"
	"github.com/dmitrijs2005/dares/internal/client/models"
	"github.com/dmitrijs2005/dares/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/dares/internal/client/services"
	"github.com/dmitrijs2005/dares/internal/client/session"
	"github.com/dmitrijs2005/dares/internal/client/storage"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/dmitrijs2005/dares/internal/logging"
)

type profileService interface {
	Current(ctx context.Context) (*models.Profile, error)
	Update(ctx context.Context, edit models.ProfileEdit) (*models.Profile, error)
}

type challengeService interface {
	Active(ctx context.Context) ([]models.Challenge, error)
	Mine(ctx context.Context) ([]models.Challenge, error)
	TargetingMe(ctx context.Context) ([]models.Challenge, error)
	Get(ctx context.Context, id string) (*models.Challenge, error)
	Create(ctx context.Context, d models.ChallengeDraft) (*models.Challenge, error)
	Update(ctx context.Context, id string, d models.ChallengeDraft) (*models.Challenge, error)
	Delete(ctx context.Context, id string) error
}

type completionService interface {
	Submit(ctx context.Context, challengeID string, proof *services.Proof) (*models.Completion, error)
	ForChallenge(ctx context.Context, challengeID string) ([]models.Completion, error)
	Mine(ctx context.Context) ([]models.Completion, error)
	UpdateStatus(ctx context.Context, completionID string, status models.CompletionStatus) (*models.Completion, error)
}

type leaderboardService interface {
	Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type locationService interface {
	Share(ctx context.Context, lat, lng float64) (*models.Location, error)
	StopSharing(ctx context.Context) error
	List(ctx context.Context) ([]models.Location, error)
}

// sessionState is the part of session.Bridge the CLI reports on.
type sessionState interface {
	Status() session.Status
	AuthError() error
	Refresh(ctx context.Context) session.RefreshResult
	Close()
}

// App is the interactive dares client.
type App struct {
	config      *config.Config
	logger      logging.Logger
	authService services.AuthService
	profiles    profileService
	challenges  challengeService
	completions completionService
	leaderboard leaderboardService
	locations   locationService
	session     sessionState
	reader      *bufio.Reader
	out         io.Writer
	closers     []func() error
}

// NewApp wires the identity provider, the datastore backend and the domain
// services selected by c. Background session tasks live as long as ctx.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	a := &App{config: c, logger: logger, reader: bufio.NewReader(os.Stdin), out: os.Stdout}

	db, err := localdb.Open(ctx, c.SessionDB)
	if err != nil {
		return nil, fmt.Errorf("error initializing session database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	provider, err := newProvider(c)
	if err != nil {
		a.close()
		return nil, err
	}
	ident := identity.NewClient(provider, metadata.NewSessionStore(db), logger.With("component", "identity"))

	factory, err := a.newFactory(ctx, c)
	if err != nil {
		a.close()
		return nil, err
	}

	bridge, err := session.New(ident, factory, session.Options{
		RefreshInterval:  c.RefreshInterval,
		LivenessInterval: c.LivenessInterval,
		TickTimeout:      c.HTTPTimeout,
		Logger:           logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	var proofs services.ProofUploader
	if c.StorageEnabled() {
		ps, err := storage.NewProofStore(ctx, storage.Config{
			Bucket:    c.StorageBucket,
			Region:    c.StorageRegion,
			Endpoint:  c.StorageEndpoint,
			AccessKey: c.StorageAccessKey,
			SecretKey: c.StorageSecretKey,
			PublicURL: c.StoragePublicURL,
		})
		if err != nil {
			logger.Warn(ctx, "proof uploads disabled", "error", err)
		} else {
			proofs = ps
		}
	}

	profiles := services.NewProfileService(bridge, ident, logger)
	a.profiles = profiles
	a.challenges = services.NewChallengeService(bridge, ident, profiles, logger)
	a.completions = services.NewCompletionService(bridge, ident, proofs, logger)
	a.leaderboard = services.NewLeaderboardService(bridge, profiles, logger)
	a.locations = services.NewLocationService(bridge, ident, profiles, logger)
	a.authService = services.NewAuthService(ident, bridge, logger)
	a.session = bridge

	bridge.Start(ctx, profiles)
	return a, nil
}

func newProvider(c *config.Config) (identity.Provider, error) {
	switch c.IdentityBackend {
	case config.IdentityFirebase:
		return firebase.New(firebase.Config{
			APIKey:           c.IdentityAPIKey,
			IdentityEndpoint: c.IdentityEndpoint,
			TokenEndpoint:    c.TokenEndpoint,
			Timeout:          c.HTTPTimeout,
		}), nil
	case config.IdentityLocal:
		return local.New([]byte(c.LocalSigningKey)), nil
	}
	return nil, fmt.Errorf("unknown identity backend %q: %w", c.IdentityBackend, common.ErrConfiguration)
}

func (a *App) newFactory(ctx context.Context, c *config.Config) (datastore.Factory, error) {
	switch c.DatastoreBackend {
	case config.DatastorePostgREST:
		return postgrest.NewFactory(postgrest.Config{
			BaseURL: c.DatastoreURL,
			AnonKey: c.DatastoreAnonKey,
			Timeout: c.HTTPTimeout,
		}), nil
	case config.DatastoreSQLite, config.DatastorePostgres:
		dialect, err := sqlstore.ParseDialect(c.DatastoreBackend)
		if err != nil {
			return nil, err
		}
		store, err := sqlstore.Open(ctx, dialect, c.DatastoreDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store.Factory(), nil
	}
	return nil, fmt.Errorf("unknown datastore backend %q: %w", c.DatastoreBackend, common.ErrConfiguration)
}

// Run restores a persisted session, then serves commands from stdin until
// the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	fmt.Fprintln(a.out, "Welcome to dares (type 'help' for commands)")
	if p, err := a.authService.Restore(ctx); err != nil {
		a.logger.Warn(ctx, "session restore failed", "error", err)
	} else if p != nil {
		fmt.Fprintf(a.out, "Signed in as %s\n", p.Email)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) close() {
	if a.session != nil {
		a.session.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *App) isLoggedIn() bool {
	return a.authService != nil && a.authService.Whoami() != nil
}

func (a *App) getStatus() string {
	s := ""
	if a.authService != nil {
		if p := a.authService.Whoami(); p != nil {
			s = p.Email + " "
		}
	}
	if a.session != nil {
		s += a.session.Status().String()
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// nowFn is a seam for deadline parsing in tests.
var nowFn = time.Now
