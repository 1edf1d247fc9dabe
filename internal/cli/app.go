package cli

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/auth"
	"github.com/roach88/rollcall/internal/config"
	"github.com/roach88/rollcall/internal/directory"
	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/store"
)

// session is everything one command invocation needs: loaded config, the
// wired pipeline, and the writers it reports to.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	formatter *OutputFormatter
	printer   *Printer
	console   *console
	orch      *engine.Orchestrator
	journal   *store.Store
}

// sessionSetup adjusts config after loading, e.g. flag overrides.
type sessionSetup func(cfg *config.Config)

// newFormatter builds the formatter for cmd before config is loaded, so
// config errors are reported in the requested format.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	format := opts.Format
	if format == "" {
		format = "text"
	}
	return &OutputFormatter{
		Format:    format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadSession loads config and sets up logging and output. It does not
// touch the network.
func loadSession(opts *RootOptions, cmd *cobra.Command, setup ...sessionSetup) (*session, error) {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, "failed to load config", err)
	}
	for _, fn := range setup {
		fn(cfg)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)
	slog.SetDefault(logger)

	mode, err := ParseColorMode(colorFlag(opts))
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, "invalid --color", err)
	}

	return &session{
		cfg:       cfg,
		logger:    logger,
		formatter: formatter,
		printer:   NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), ResolveColors(mode, cfg.Output.Colors)),
		console:   newConsole(cmd.InOrStdin(), cmd.ErrOrStderr(), opts.Yes),
	}, nil
}

// openSession loads config and wires the full pipeline: token source,
// directory client, executor, journal and orchestrator.
func openSession(opts *RootOptions, cmd *cobra.Command, setup ...sessionSetup) (*session, error) {
	s, err := loadSession(opts, cmd, setup...)
	if err != nil {
		return nil, err
	}
	cfg := s.cfg

	if err := cfg.RequireCredentials(); err != nil {
		return nil, s.formatter.Fail(ExitCommandError, "incomplete configuration", err)
	}

	httpClient := &http.Client{Timeout: cfg.Executor.HTTPTimeout}
	tokens := auth.NewClientCredentials(
		cfg.TokenURL(), cfg.Auth.ClientID, cfg.Auth.ClientSecret, cfg.TokenAudience(),
		httpClient, s.logger,
	)
	client := directory.NewClient(cfg.APIURL(), httpClient, s.logger)
	fetcher := directory.NewFetcher(client, s.logger)

	clock := opts.Clock
	if clock == nil {
		clock = engine.SystemClock{}
	}
	executor := engine.NewExecutor(client,
		engine.WithClock(clock),
		engine.WithPace(cfg.Executor.Pace),
		engine.WithMaxAttempts(cfg.Executor.MaxAttempts),
		engine.WithDefaultRetryAfter(cfg.Executor.RetryAfter),
		engine.WithLogger(s.logger),
	)

	var orchOpts []engine.OrchestratorOption
	if opts.RunIDs != nil {
		orchOpts = append(orchOpts, engine.WithRunIDs(opts.RunIDs))
	}
	if path := journalPath(opts, cfg); path != "" {
		st, err := store.Open(path)
		if err != nil {
			return nil, s.formatter.Fail(ExitCommandError, "failed to open audit journal", err)
		}
		s.logger.Debug("audit journal open", "path", path)
		s.journal = st
		orchOpts = append(orchOpts, engine.WithJournal(st))
	}

	s.orch = engine.NewOrchestrator(tokens, fetcher, executor, s.console, cfg.Settings(), orchOpts...)
	return s, nil
}

// Close releases the journal, if one was opened.
func (s *session) Close() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		s.logger.Error("error closing audit journal", "error", err)
	}
}

func journalPath(opts *RootOptions, cfg *config.Config) string {
	if opts.AuditDB != "" {
		return opts.AuditDB
	}
	return cfg.Journal.Path
}

func colorFlag(opts *RootOptions) string {
	if opts.Color == "" {
		return "auto"
	}
	return opts.Color
}

// newLogger builds the process logger. Logs always go to stderr so they
// never mix with text or JSON results.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. A
// cancelled batch stops between tasks and still reports what it did.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
