package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/juliansprt/VeriFactu/internal/aeat"
	"github.com/juliansprt/VeriFactu/internal/archive"
	"github.com/juliansprt/VeriFactu/internal/certs"
	"github.com/juliansprt/VeriFactu/internal/chain"
	"github.com/juliansprt/VeriFactu/internal/classify"
	"github.com/juliansprt/VeriFactu/internal/config"
	"github.com/juliansprt/VeriFactu/internal/qr"
	"github.com/juliansprt/VeriFactu/internal/resilience"
	"github.com/juliansprt/VeriFactu/internal/soap"
	"github.com/juliansprt/VeriFactu/internal/store"
	"github.com/juliansprt/VeriFactu/internal/submission"
	"github.com/juliansprt/VeriFactu/internal/validate"
)

// app is the wired service shared by the commands of one process.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Store
	ledger     *chain.Ledger
	codec      *soap.Codec
	classifier *classify.Classifier
	querier    *aeat.Querier
	policy     *resilience.Policy
	submitter  *submission.Orchestrator
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the configuration named by the --config flag.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// openApp loads the configuration, opens the database and wires the
// submission pipeline. The caller must close the app.
func openApp(opts *RootOptions, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(opts.Verbose, logOut)

	loc, err := cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid timezone", err)
	}
	entries, err := cfg.Certificates()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to resolve certificates", err)
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	transportOpts := []aeat.TransportOption{
		aeat.WithTimeout(cfg.HTTPTimeout()),
		aeat.WithTransportLogger(logger),
	}
	if opts.Transport != nil {
		transportOpts = append(transportOpts, aeat.WithBaseTransport(opts.Transport))
	}
	transport := aeat.NewHTTPTransport(transportOpts...)
	gate := aeat.NewGate()
	creds := certs.NewSource(entries)
	codec := soap.NewCodec(cfg.IDVersion, cfg.SystemInfo())

	a := &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		ledger:     chain.New(st, chain.WithLocation(loc), chain.WithLogger(logger)),
		codec:      codec,
		classifier: classify.New(codec),
		querier:    aeat.NewQuerier(cfg.Endpoint, codec, transport, gate, creds, logger),
	}
	a.policy = resilience.New(cfg.Resilience(), a.querier, resilience.WithLogger(logger))

	deps := submission.Deps{
		Validator:   validate.New(),
		Ledger:      a.ledger,
		Codec:       codec,
		Transport:   transport,
		Gate:        gate,
		Policy:      a.policy,
		Classifier:  a.classifier,
		States:      st,
		PostProcess: st,
		Verifier:    qr.New(cfg.ValidateEndpoint),
		Credentials: creds,
		Querier:     a.querier,
	}
	if cfg.ArchiveDir != "" {
		deps.Files = archive.New(cfg.ArchiveDir)
	}

	a.submitter, err = submission.New(cfg.Endpoint, deps, submission.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to wire submission pipeline", err)
	}
	return a, nil
}

// Close releases the database.
func (a *app) Close() error {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
