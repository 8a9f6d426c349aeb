package project

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dshills/ctxpack/internal/compressor"
	"github.com/dshills/ctxpack/internal/config"
	"github.com/dshills/ctxpack/internal/contextpack"
	"github.com/dshills/ctxpack/internal/indexer"
	"github.com/dshills/ctxpack/internal/storage"
)

// Options controls how a project is opened
type Options struct {
	Language string // overrides the configured language when set
	NoStore  bool   // skip the state database; packs are built without delta
	Logger   *slog.Logger
}

// Project is an opened workspace: its configuration, index snapshot, state
// store and the pack service wired over them
type Project struct {
	Root    string
	Config  *config.Config
	Index   *indexer.Index
	Store   storage.Store // nil when opened with NoStore or the database is unusable
	Service *contextpack.Service

	// CacheHit reports whether the index came from the snapshot cache
	CacheHit bool
}

// Open loads configuration, builds or loads the index and opens the state
// store for root
func Open(ctx context.Context, root string, opts Options) (*Project, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, err
	}
	if opts.Language != "" {
		cfg.Language = opts.Language
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	estimator, err := cfg.Estimator()
	if err != nil {
		return nil, err
	}

	p := &Project{Root: absRoot, Config: cfg}

	idxOpts := cfg.IndexerOptions(logger)
	if cfg.SnapshotCache {
		p.Index, p.CacheHit, err = indexer.LoadOrBuild(ctx, absRoot, cfg.StatePath(absRoot), idxOpts)
	} else {
		p.Index, err = indexer.Build(ctx, absRoot, idxOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to index project: %w", err)
	}

	// An unusable state database only disables delta tracking
	var storeErr error
	if !opts.NoStore {
		store, err := storage.NewSQLiteStorage(cfg.DBPath(absRoot))
		if err != nil {
			logger.Warn("state store unavailable; packs are built without delta",
				"path", cfg.DBPath(absRoot), "error", err)
			storeErr = err
		} else {
			p.Store = store
		}
	}

	svc, err := contextpack.NewService(p.Index, p.Store)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	svc.StoreErr = storeErr
	svc.Scores = cfg.Scores
	svc.Logger = logger
	svc.Engine.Estimator = estimator
	svc.Engine.Compressor = &compressor.Compressor{Weights: cfg.Weights, Estimator: estimator}
	svc.Engine.Logger = logger
	p.Service = svc

	return p, nil
}

// Close releases the state store
func (p *Project) Close() error {
	if p.Store == nil {
		return nil
	}
	return p.Store.Close()
}
