package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/careermate/internal/config"
	"github.com/ashureev/careermate/internal/remote"
	"github.com/ashureev/careermate/internal/store"
)

// The terminal client keeps a single local session.
const (
	localUserID    = "local"
	localSessionID = "default"
)

// Report generation can take a while on the hosted model.
const requestTimeout = 2 * time.Minute

// The backend-issued device identity is kept between runs in its own
// scope so clearing the session does not forget it.
const (
	identitySessionID = "identity"
	anonIDKey         = "anonId"
)

type app struct {
	cfg     *config.ClientConfig
	client  *remote.Client
	db      *store.SQLiteStore
	storage *store.ScopedStorage
	ident   *store.ScopedStorage
	anonID  string
}

func openApp() (*app, error) {
	cfg, err := loadClientConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := store.NewSQLite(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}
	ident := store.Scoped(db, localUserID, identitySessionID)
	anonID, _, err := ident.Get(context.Background(), anonIDKey)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read saved identity: %w", err)
	}
	return &app{
		cfg: cfg,
		client: remote.New(cfg.BackendURL,
			remote.WithHTTPClient(&http.Client{Timeout: requestTimeout}),
			remote.WithAnonID(anonID),
			remote.WithSessionID(localSessionID),
		),
		db:      db,
		storage: store.Scoped(db, localUserID, localSessionID),
		ident:   ident,
		anonID:  anonID,
	}, nil
}

func (a *app) Close() error {
	if id := a.client.AnonID(); id != "" && id != a.anonID {
		if err := a.ident.Set(context.Background(), anonIDKey, id); err != nil {
			_ = a.db.Close()
			return fmt.Errorf("save identity: %w", err)
		}
	}
	return a.db.Close()
}
