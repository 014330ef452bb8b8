// Package commands implements CLI command handlers for codeatlas.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/codeatlas-dev/codeatlas/internal/changeset"
	"github.com/codeatlas-dev/codeatlas/internal/observability"
	"github.com/codeatlas-dev/codeatlas/internal/orchestrator"
	"github.com/codeatlas-dev/codeatlas/internal/store"
	"github.com/codeatlas-dev/codeatlas/internal/vcs"
	"github.com/codeatlas-dev/codeatlas/pkg/config"
	"github.com/codeatlas-dev/codeatlas/pkg/version"
)

// outputFormat is the machine-readable rendering chosen by a command's
// --format flag; "text" falls through to each command's own
// human-oriented printer.
type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

// errUnknownFormat is returned when --format names anything other
// than text, json, or yaml.
var errUnknownFormat = errors.New("unknown --format, expected text, json, or yaml")

// writeStructured renders value as JSON or YAML to w per format,
// mirroring the teacher's renderer package's multi-format report
// output. Returns false, nil when format is "text" so the caller falls
// through to its own human-readable printer.
func writeStructured(w io.Writer, format outputFormat, value any) (handled bool, err error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return true, enc.Encode(value)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()

		return true, enc.Encode(value)
	case formatText, "":
		return false, nil
	default:
		return false, errUnknownFormat
	}
}

// Globals holds the persistent flags shared by every subcommand.
type Globals struct {
	ConfigPath *string
	Verbose    *bool
	Quiet      *bool
}

// deps bundles the wiring every command needs: config, observability,
// an open store, and the domain services layered on top of it.
type deps struct {
	cfg       *config.Config
	providers observability.Providers
	store     *store.Store
	runner    *orchestrator.Runner
	applier   *changeset.Applier
}

func (g Globals) load(mode observability.AppMode) (*deps, error) {
	cfg, err := config.LoadConfig(*g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogJSON = cfg.Logging.Format == "json"

	if *g.Verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	if *g.Quiet {
		obsCfg.LogLevel = slog.LevelError
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	s, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		providers.Logger.Error("open store failed", "error", err)

		return nil, fmt.Errorf("open store: %w", err)
	}

	return &deps{
		cfg:       cfg,
		providers: providers,
		store:     s,
		runner:    orchestrator.NewRunner(s),
		applier:   changeset.New(s),
	}, nil
}

func (d *deps) close(ctx context.Context) {
	if err := d.store.Close(); err != nil {
		d.providers.Logger.Warn("close store failed", "error", err)
	}

	if err := d.providers.Shutdown(ctx); err != nil {
		d.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// collaboratorFor returns a VCS collaborator rooted at the given path,
// used by the changeset command to stage and commit applied patches.
func collaboratorFor(root string) *vcs.Collaborator {
	return vcs.New(root)
}
