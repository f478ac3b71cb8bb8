package app

import (
	"context"
	"fmt"

	answercache "edgejury/internal/cache/answer"
	"edgejury/internal/council"
	"edgejury/internal/gateway/config"
	"edgejury/internal/gateway/handler"
	"edgejury/internal/gateway/runfeed"
	"edgejury/internal/gateway/repository/runstore"
	"edgejury/internal/gateway/server"
)

type App struct {
	server *server.Server
	store  runstore.Store
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	store, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	gateway, err := initGateway(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	cache := answercache.New(answercache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        cfg.Cache.TTL,
	})
	feed := runfeed.NewBroker()

	orch := &council.Orchestrator{
		Gateway: gateway,
		Params: council.Params{
			MaxTokensStage1: cfg.Council.MaxTokensStage1,
			MaxTokensStage2: cfg.Council.MaxTokensStage2,
			MaxTokensStage3: cfg.Council.MaxTokensStage3,
			MaxTokensStage4: cfg.Council.MaxTokensStage4,
			ChairmanModel:   cfg.Council.ChairmanModel,
			VerifierModel:   cfg.Council.VerifierModel,
		},
		Persist: persistFuncs(store),
		Cache: council.CacheFuncs{
			Lookup: cache.Lookup,
			Store:  cache.Store,
		},
		Archive: initArchiveSink(cfg),
	}

	// Routing & Server
	svc := handler.NewService(store, orch, feed, cfg.Council.Size)
	mux := server.NewMux(svc)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
		store:  store,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
