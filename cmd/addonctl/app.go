package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/felixgeelhaar/addonctl/internal/adapters/command"
	"github.com/felixgeelhaar/addonctl/internal/adapters/fetch"
	"github.com/felixgeelhaar/addonctl/internal/adapters/host"
	"github.com/felixgeelhaar/addonctl/internal/adapters/journal"
	"github.com/felixgeelhaar/addonctl/internal/adapters/logging"
	"github.com/felixgeelhaar/addonctl/internal/adapters/replier"
	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/domain/config"
	"github.com/felixgeelhaar/addonctl/internal/domain/confirm"
	"github.com/felixgeelhaar/addonctl/internal/domain/install"
	"github.com/felixgeelhaar/addonctl/internal/domain/manager"
	"github.com/felixgeelhaar/addonctl/internal/domain/resolver"
	"github.com/felixgeelhaar/addonctl/internal/domain/session"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// consolePermission is the level of a local CLI user.
const consolePermission = 4

// app holds the components wired for one command invocation.
type app struct {
	cfg     *config.Config
	logger  ports.Logger
	store   *catalogue.Store
	host    *host.DirectoryHost
	journal *journal.SQLiteJournal
	lock    *session.Lock
	manager *manager.Manager
	replier ports.Replier
}

func newLogger() ports.Logger {
	level := ports.LevelInfo
	switch {
	case verbose:
		level = ports.LevelDebug
	case quiet:
		level = ports.LevelError
	}
	return logging.NewConsoleLogger(
		logging.WithLevel(level),
		logging.WithJSONFormat(logJSON),
		logging.WithColor(!noColor && isatty.IsTerminal(os.Stderr.Fd())),
	)
}

func newApp(ctx context.Context) (*app, error) {
	logger := newLogger()

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	cfg, path, err := config.Resolve(cfgFile, cwd)
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.Debug(ctx, "configuration loaded", ports.F("path", path))
	}

	if err := os.MkdirAll(cfg.PluginDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("create plugin directory: %w", err)
	}
	j, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewHTTPFetcher(fetch.DefaultClientConfig())
	store := catalogue.NewStore(cfg.CacheDirectory(), cfg.CatalogueSourceURL, fetcher, catalogue.WithLogger(logger))
	if err := store.Load(ctx); err != nil {
		logger.Debug(ctx, "catalogue cache unavailable", ports.ErrField(err))
	}

	h := host.NewDirectoryHost(cfg.PluginDirectory, cfg.StatePath(), cfg.HostProvidedVersions)
	runner := command.NewExecRunner(command.WithLogger(logger))
	pipeline := install.NewPipeline(h, fetcher,
		install.NewRequirementInstaller(runner, cfg.PythonExecutable, logger),
		install.WithJournal(j),
		install.WithLogger(logger),
		install.WithBackupDir(cfg.BackupDirectory()),
		install.WithPreferredExtensions(cfg.PreferredAssetExtensions),
	)
	lock := session.New(session.WithFile(cfg.LockPath()))

	mgr := manager.New(store, h, resolver.New(store, h, resolver.WithBlacklist(cfg.DependencyBlacklist...)), pipeline, lock,
		manager.WithGate(confirm.NewGate(confirm.NewFileStore(cfg.IntentsPath()), cfg.ConfirmTimeout())),
		manager.WithJournal(j),
		manager.WithLogger(logger),
		manager.WithSettings(manager.Settings{
			PermissionLevel: cfg.PermissionLevel,
			PageSize:        cfg.PageSize,
			UpdateInterval:  cfg.UpdateInterval(),
			CheckUpgrade:    cfg.CheckUpgradeOnRefresh,
			DefaultLanguage: cfg.DefaultLanguage,
		}),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		host:    h,
		journal: j,
		lock:    lock,
		manager: mgr,
		replier: replier.NewTerminal(
			replier.WithColor(!noColor && isatty.IsTerminal(os.Stdout.Fd())),
			replier.WithQuiet(quiet),
		),
	}, nil
}

// Close releases the journal database.
func (a *app) Close() {
	if err := a.journal.Close(); err != nil {
		a.logger.Warn(context.Background(), "failed to close journal", ports.ErrField(err))
	}
}

// currentRequester describes the local user running the command.
func currentRequester() manager.Requester {
	return manager.Requester{
		ID:          requesterID(),
		Interactive: isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()),
		Permission:  consolePermission,
		Language:    languageFromLocale(os.Getenv("LC_ALL"), os.Getenv("LANG")),
	}
}

func requesterID() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "console"
}

// languageFromLocale turns "zh_CN.UTF-8" into "zh_cn". The first non-empty,
// non-C locale wins.
func languageFromLocale(locales ...string) string {
	for _, loc := range locales {
		if i := strings.IndexAny(loc, ".@"); i >= 0 {
			loc = loc[:i]
		}
		loc = strings.ToLower(strings.TrimSpace(loc))
		if loc == "" || loc == "c" || loc == "posix" {
			continue
		}
		return loc
	}
	return ""
}
