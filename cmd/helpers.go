package cmd

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/grove-sh/grove/internal/cache"
	"github.com/grove-sh/grove/internal/config"
	"github.com/grove-sh/grove/internal/db"
	"github.com/grove-sh/grove/internal/workspace"
)

// engine bundles the shared pieces every command needs: resolved
// configuration, the bookkeeping database, the workspace store, and the
// mirror cache manager.
type engine struct {
	cfg      *config.Config
	database *sql.DB
	store    *workspace.Store
	cache    *cache.Manager
}

// newEngine loads configuration, ensures the on-disk roots exist, and
// opens the bookkeeping database with migrations applied.
func newEngine() (*engine, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load configuration")
	}

	if _, err := config.EnsureDataDir(); err != nil {
		return nil, err
	}
	if _, err := config.EnsureCacheDir(); err != nil {
		return nil, err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}

	dbPath, err := config.GetDBPath()
	if err != nil {
		return nil, err
	}

	database, err := db.InitDB(dbPath)
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize database")
	}

	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, eris.Wrap(err, "failed to run migrations")
	}

	return &engine{
		cfg:      cfg,
		database: database,
		store:    workspace.NewStore(cfg.DataDir),
		cache:    cache.NewManager(cfg.CacheDir, database),
	}, nil
}

func (e *engine) close() {
	if e.database != nil {
		e.database.Close()
	}
}

// formatTimeAgo renders a timestamp as a rough human-readable age
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
