package main

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lorebook/internal/app"
	"lorebook/internal/auth"
	"lorebook/internal/config"
	"lorebook/internal/generation"
	"lorebook/internal/logging"
	"lorebook/internal/lore"
	"lorebook/internal/store"
	"lorebook/internal/supabase"
)

// wired is everything built from one config: the controller's clients plus
// the resources that must be released when they are replaced.
type wired struct {
	clients app.Clients
	manager *auth.Manager
	gen     *generation.Client
	db      *gorm.DB
}

// Close releases the local database, if any.
func (w *wired) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// buildClients wires the store, auth and generation clients for cfg.
// Missing credentials do not fail here: the affected client is replaced by
// one that fails fast on use, and the settings page shows what is missing.
func buildClients(ctx context.Context, cfg *config.Config, cfgPath string) (*wired, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "buildClients")
	defer timer.Stop()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &wired{}
	about := app.About{
		Backend:    cfg.Store.Backend,
		StoreReady: cfg.StoreConfigured(),
		ConfigPath: cfgPath,
	}

	var (
		provider  auth.Provider
		storeImpl store.Store
	)
	switch cfg.Store.Backend {
	case config.BackendLocal:
		db, err := store.OpenDB(cfg.Store.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open local database: %w", err)
		}
		w.db = db
		local, err := auth.NewLocalProvider(db, cfg.Session.SecretPath, cfg.GetSessionTTL())
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("local auth: %w", err)
		}
		provider = local
		w.manager = auth.NewManager(provider, cfg.Session.Path)
		sq, err := store.NewSQLiteStore(db, w.manager)
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("local store: %w", err)
		}
		storeImpl = sq
		about.StoreURL = cfg.Store.DatabasePath

	default:
		about.StoreURL = cfg.Store.URL
		client, err := supabase.New(cfg.Store.URL, cfg.Store.AnonKey, cfg.GetStoreTimeout())
		switch {
		case errors.Is(err, lore.ErrMissingCredential):
			logging.Boot("supabase URL or anon key missing; store disabled")
			reason := "set store.url and store.anon_key (or SUPABASE_URL and SUPABASE_ANON_KEY)"
			provider = auth.Unconfigured{Reason: reason}
			w.manager = auth.NewManager(provider, cfg.Session.Path)
			storeImpl = store.Unconfigured{Reason: reason}
		case err != nil:
			return nil, err
		default:
			provider = auth.NewSupabaseProvider(client)
			w.manager = auth.NewManager(provider, cfg.Session.Path)
			storeImpl = store.NewSupabaseStore(client, w.manager)
		}
	}

	gen, err := generation.New(ctx, generation.Config{
		APIKey:  cfg.Generation.APIKey,
		Model:   cfg.Generation.Model,
		Timeout: cfg.GetGenerationTimeout(),
	})
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	w.gen = gen
	about.Model = gen.ModelName()
	about.GenerationReady = gen.Configured()

	w.clients = app.Clients{
		Store:     storeImpl,
		Auth:      w.manager,
		Generator: gen,
		About:     about,
	}
	logging.Boot("clients wired (backend=%s, store ready=%v, generation ready=%v)",
		about.Backend, about.StoreReady, about.GenerationReady)
	return w, nil
}
