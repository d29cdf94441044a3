package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalambet/llmcore/internal/config"
	"github.com/kalambet/llmcore/internal/engine"
	"github.com/kalambet/llmcore/internal/storage"
	"github.com/kalambet/llmcore/internal/tools"
	"github.com/kalambet/llmcore/internal/tools/builtin"
	"github.com/kalambet/llmcore/internal/transport"
	"github.com/kalambet/llmcore/internal/usage"
)

// app is the state shared by commands that talk to models.
type app struct {
	cfg      config.Config
	registry *config.Registry
	store    *storage.Store
	files    *usage.JSONFileRecorder
}

// openApp loads the config and registry and opens storage.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel == "" && !debug {
		setupLogging(cfg.Log.Level, false, noColor)
	}

	registry, err := config.LoadRegistry(cfg.Models.Registry)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	return &app{
		cfg:      cfg,
		registry: registry,
		store:    store,
		files:    usage.NewJSONFileRecorder(cfg.Storage.DataDir),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}

// recorder writes usage to both usage.json and the database.
func (a *app) recorder() usage.Recorder {
	return usage.Multi{a.files, usage.NewStoreRecorder(a.store)}
}

func (a *app) client() *transport.Client {
	return transport.New(a.cfg.Engine.RetryPolicy(),
		transport.WithAttemptTimeout(a.cfg.Engine.AttemptTimeout()),
		transport.WithLogger(slog.Default()),
	)
}

// engine opens model (or the default model) with the configured retry and
// temperature settings. opts are applied last.
func (a *app) engine(model string, opts ...engine.Option) (*engine.Engine, error) {
	if model == "" {
		model = a.cfg.Engine.DefaultModel
	}
	base := []engine.Option{
		engine.WithClient(a.client()),
		engine.WithTemperature(a.cfg.Engine.Temperature),
		engine.WithDebug(debug),
		engine.WithLogger(slog.Default()),
	}
	return engine.Open(a.registry, model, append(base, opts...)...)
}

// tools returns the builtin library restricted to names. "all" selects every
// tool. imageModel enables generate_image.
func (a *app) tools(names []string, imageModel string) (*tools.Library, error) {
	opts := builtin.Options{}
	if imageModel != "" {
		gen, err := a.engine("")
		if err != nil {
			return nil, err
		}
		opts.Images = gen
		opts.ImageModel = imageModel
		opts.ImageDir = filepath.Join(a.cfg.Storage.DataDir, "images")
		if err := os.MkdirAll(opts.ImageDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating image directory: %w", err)
		}
	}
	lib := builtin.Library(opts)
	if len(names) == 1 && names[0] == "all" {
		return lib, nil
	}
	return lib.Subset(names...)
}
