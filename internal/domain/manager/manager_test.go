package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/domain/confirm"
	"github.com/felixgeelhaar/addonctl/internal/domain/install"
	"github.com/felixgeelhaar/addonctl/internal/domain/resolver"
	"github.com/felixgeelhaar/addonctl/internal/domain/session"
	"github.com/felixgeelhaar/addonctl/internal/ports"
	"github.com/felixgeelhaar/addonctl/internal/testutil"
	"github.com/felixgeelhaar/addonctl/internal/testutil/mocks"
)

const testSource = "https://catalogue.example.invalid/meta.zip"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	builder   *testutil.CatalogueBuilder
	pluginDir string
	store     *catalogue.Store
	fetcher   *mocks.Fetcher
	host      *mocks.Host
	journal   *mocks.Journal
	replier   *mocks.Replier
	lock      *session.Lock
	clock     *testClock
	manager   *Manager
}

var (
	admin = Requester{ID: "console", Permission: 4}
	user  = Requester{ID: "alice", Interactive: true, Permission: 3, Language: "zh_cn"}
	guest = Requester{ID: "bob", Interactive: true, Permission: 1}
)

func sampleCatalogue() *testutil.CatalogueBuilder {
	return testutil.NewCatalogueBuilder().
		Plugin("app",
			testutil.Named("App"),
			testutil.Labelled("tool"),
			testutil.Described(map[string]string{"en_us": "An app", "zh_cn": "应用"}),
			testutil.Release("1.0.0", testutil.DependsOn("lib", ">=1.0")),
		).
		Plugin("lib",
			testutil.Named("Lib"),
			testutil.Labelled("api"),
			testutil.Release("1.0.0"),
			testutil.Release("1.5.0"),
		).
		Plugin("chat",
			testutil.Named("Chat"),
			testutil.Labelled("information"),
			testutil.Release("0.1.0"),
			testutil.Release("0.2.0"),
			testutil.Release("0.3.0"),
			testutil.Release("0.4.0"),
			testutil.Release("0.5.0"),
			testutil.Release("0.6.0"),
		).
		Plugin("util",
			testutil.Named("Util"),
			testutil.Labelled("tool"),
			testutil.Release("2.0.0"),
		)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	root := t.TempDir()
	f := &fixture{
		builder:   sampleCatalogue(),
		pluginDir: filepath.Join(root, "plugins"),
		fetcher:   mocks.NewFetcher(),
		journal:   mocks.NewJournal(),
		replier:   mocks.NewReplier(),
		lock:      session.New(),
		clock:     &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, os.MkdirAll(f.pluginDir, 0o755))
	f.host = mocks.NewHost(f.pluginDir)

	f.fetcher.AddBody(testSource, f.builder.Archive(t))
	for _, p := range []struct{ id, version string }{
		{"app", "1.0.0"}, {"lib", "1.0.0"}, {"lib", "1.5.0"}, {"util", "2.0.0"},
		{"chat", "0.5.0"}, {"chat", "0.6.0"},
	} {
		name := p.id + "-" + p.version + ".mcdr"
		f.fetcher.AddBody(f.builder.AssetURL(p.id, name), []byte(name))
	}

	f.store = catalogue.NewStore(filepath.Join(root, "cache"), testSource, f.fetcher, catalogue.WithClock(f.clock.Now))
	require.NoError(t, f.store.Refresh(context.Background()))

	pipeline := install.NewPipeline(f.host, f.fetcher,
		install.NewRequirementInstaller(mocks.NewCommandRunner(), "python3", nil),
		install.WithJournal(f.journal),
		install.WithBackupDir(filepath.Join(root, "backup")),
	)
	gate := confirm.NewGate(confirm.NewMemoryStore(), 10*time.Second, confirm.WithClock(f.clock.Now))

	all := append([]Option{WithGate(gate), WithJournal(f.journal)}, opts...)
	f.manager = New(f.store, f.host, resolver.New(f.store, f.host), pipeline, f.lock, all...)
	return f
}

// installOld places an artifact on disk and registers it as loaded.
func (f *fixture) installOld(t *testing.T, id, version string) {
	t.Helper()
	path := testutil.WriteTempFile(t, f.pluginDir, id+"-"+version+".mcdr", "old "+version)
	f.host.Add(id, version, path)
}

func installedVersions(t *testing.T, h *mocks.Host) map[string]string {
	t.Helper()
	list, err := h.Installed(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(list))
	for _, p := range list {
		out[p.ID] = p.Version
	}
	return out
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		id      string
		req     string
		wantErr bool
	}{
		{input: "foo", id: "foo", req: "*"},
		{input: "foo>=2.0.0", id: "foo", req: ">=2.0.0"},
		{input: " foo_bar==1.2.3 ", id: "foo_bar", req: "==1.2.3"},
		{input: "foo~1.2", id: "foo", req: "~1.2"},
		{input: "Foo", wantErr: true},
		{input: "", wantErr: true},
		{input: "foo>>1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTarget(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, got.PluginID)
			assert.Equal(t, tt.req, got.Requirement.String())
			assert.False(t, got.Upgrade)
		})
	}
}

func TestInstall_DependenciesFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	report, err := f.manager.Install(context.Background(), admin, "app", f.replier, InstallOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"lib", "app"}, report.Installed())
	assert.Equal(t, map[string]string{"app": "1.0.0", "lib": "1.5.0"}, installedVersions(t, f.host))
	assert.True(t, f.replier.Contains("Installed app@1.0.0"))
	assert.False(t, f.lock.Held(), "lock is released after the operation")
}

func TestInstall_InteractiveRequiresConfirmation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	report, err := f.manager.Install(ctx, user, "util", f.replier, InstallOptions{})
	require.Error(t, err)
	assert.Nil(t, report)
	confirmErr, ok := AsConfirmationRequired(err)
	require.True(t, ok)
	assert.Equal(t, "util", confirmErr.TargetSpec)
	assert.Equal(t, []string{"util"}, confirmErr.Plan.PluginIDs())
	assert.Empty(t, installedVersions(t, f.host), "a single request never installs")
	assert.True(t, f.replier.Contains("Repeat the command within 10s"))

	f.clock.Advance(5 * time.Second)
	report, err = f.manager.Install(ctx, user, "util", f.replier, InstallOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"util"}, report.Installed())
}

func TestInstall_ConfirmationExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Install(ctx, user, "util", f.replier, InstallOptions{})
	_, ok := AsConfirmationRequired(err)
	require.True(t, ok)

	f.clock.Advance(11 * time.Second)
	_, err = f.manager.Install(ctx, user, "util", f.replier, InstallOptions{})
	_, ok = AsConfirmationRequired(err)
	assert.True(t, ok, "an expired intent behaves as a first request")
	assert.Empty(t, installedVersions(t, f.host))
}

func TestInstall_AssumeYesSkipsGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	report, err := f.manager.Install(context.Background(), user, "util", f.replier, InstallOptions{AssumeYes: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"util"}, report.Installed())
}

func TestInstall_PermissionDenied(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.manager.Install(context.Background(), guest, "util", f.replier, InstallOptions{AssumeYes: true})
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))

	var pd *PermissionDeniedError
	require.True(t, errors.As(err, &pd))
	assert.Equal(t, 3, pd.Required)
	assert.Equal(t, 1, pd.Actual)
}

func TestInstall_SessionBusy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	release, err := f.lock.TryAcquire("install other")
	require.NoError(t, err)
	defer release()

	_, err = f.manager.Install(context.Background(), admin, "util", f.replier, InstallOptions{})
	require.Error(t, err)
	assert.True(t, session.IsSessionBusy(err))
	assert.Empty(t, installedVersions(t, f.host))
}

func TestInstall_AlreadySatisfied(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.installOld(t, "util", "2.0.0")

	report, err := f.manager.Install(context.Background(), admin, "util>=1.0", f.replier, InstallOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.True(t, f.replier.Contains("Nothing to do: util@2.0.0 is already satisfied"))
}

func TestInstall_UnknownPlugin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.manager.Install(context.Background(), admin, "missing", f.replier, InstallOptions{})
	require.Error(t, err)
	assert.True(t, catalogue.IsNoMatchingRelease(err))
	assert.True(t, f.replier.Contains("Cannot install missing"))
}

func TestInstall_FailureReportsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.host.FailLoad("lib", errors.New("boom"))

	report, err := f.manager.Install(context.Background(), admin, "app", f.replier, InstallOptions{})
	require.Error(t, err)
	assert.True(t, install.IsDependencyInstall(err))
	assert.Equal(t, []string{"app"}, report.NotStarted)
	assert.True(t, f.replier.Contains("Failed to install app"))
	assert.True(t, f.replier.Contains("Not started: app"))
}

func TestInstall_StaleCatalogueRefreshFailureWarns(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.clock.Advance(time.Hour)
	f.fetcher.AddError(testSource, &ports.NetworkError{URL: testSource, Err: errors.New("offline")})

	report, err := f.manager.Install(context.Background(), admin, "util", f.replier, InstallOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"util"}, report.Installed())
	assert.True(t, f.replier.Contains("Catalogue refresh failed, using cached data"))
	assert.Contains(t, f.journal.Kinds(), "refresh:failed")
}

func TestUpgrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Upgrade(ctx, admin, "lib", f.replier, InstallOptions{})
	assert.ErrorIs(t, err, ErrNotInstalled)

	f.installOld(t, "lib", "1.0.0")
	report, err := f.manager.Upgrade(ctx, admin, "lib", f.replier, InstallOptions{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, resolver.Upgrade, report.Results[0].Decision)
	assert.Equal(t, "1.5.0", installedVersions(t, f.host)["lib"])
	assert.NotEmpty(t, report.Results[0].BackupPath)
}

func TestUpgradeAll_ContinuesPastFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.installOld(t, "chat", "0.5.0")
	f.installOld(t, "lib", "1.0.0")
	f.installOld(t, "util", "2.0.0")
	f.host.FailLoadVersion("chat", "0.6.0", errors.New("incompatible"))

	report, err := f.manager.UpgradeAll(context.Background(), admin, f.replier, InstallOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpgradesFailed)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "chat", report.Results[0].Candidate.PluginID)
	assert.Error(t, report.Results[0].Err)
	assert.Equal(t, "lib", report.Results[1].Candidate.PluginID)
	assert.NoError(t, report.Results[1].Err)

	versions := installedVersions(t, f.host)
	assert.Equal(t, "0.5.0", versions["chat"], "failed upgrade restored the old version")
	assert.Equal(t, "1.5.0", versions["lib"])
	assert.Len(t, report.Failed(), 1)
}

func TestUpgradeAll_NothingToDo(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.installOld(t, "util", "2.0.0")

	report, err := f.manager.UpgradeAll(context.Background(), user, f.replier, InstallOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.True(t, f.replier.Contains("All plugins are up to date"))
}

func TestUpgradeAll_Confirmation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.installOld(t, "lib", "1.0.0")

	_, err := f.manager.UpgradeAll(ctx, user, f.replier, InstallOptions{})
	_, ok := AsConfirmationRequired(err)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", installedVersions(t, f.host)["lib"])

	report, err := f.manager.UpgradeAll(ctx, user, f.replier, InstallOptions{})
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, "1.5.0", installedVersions(t, f.host)["lib"])
}

func TestDisableAndReload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.installOld(t, "util", "2.0.0")

	require.NoError(t, f.manager.Reload(ctx, admin, "util", f.replier))
	require.NoError(t, f.manager.Disable(ctx, admin, "util", f.replier))
	assert.Equal(t, []string{"util"}, f.host.Disabled())

	err := f.manager.Disable(ctx, admin, "util", f.replier)
	assert.ErrorIs(t, err, ErrNotInstalled)
	err = f.manager.Reload(ctx, admin, "util", f.replier)
	assert.ErrorIs(t, err, ErrNotInstalled)

	assert.Equal(t, []string{"reload:ok", "disable:ok"}, f.journal.Kinds())
	assert.True(t, f.replier.Contains("Disabled util@2.0.0"))
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.installOld(t, "lib", "1.0.0")

	candidates, err := f.manager.Update(ctx, admin, f.replier)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "lib", candidates[0].PluginID)
	assert.Equal(t, []string{"refresh:ok", "scan:ok"}, f.journal.Kinds())
	assert.True(t, f.replier.Contains("Upgrade available: lib 1.0.0 -> 1.5.0"))

	f.fetcher.AddError(testSource, &ports.NetworkError{URL: testSource, Err: errors.New("offline")})
	_, err = f.manager.Update(ctx, admin, f.replier)
	require.Error(t, err)
	assert.True(t, ports.IsNetworkError(err))
	assert.Equal(t, 4, f.store.Snapshot().Len(), "failed refresh keeps the snapshot")
}

func TestUpdate_WithoutUpgradeCheck(t *testing.T) {
	t.Parallel()

	settings := DefaultSettings()
	settings.CheckUpgrade = false
	f := newFixture(t, WithSettings(settings))
	f.installOld(t, "lib", "1.0.0")

	candidates, err := f.manager.Update(context.Background(), admin, f.replier)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, []string{"refresh:ok"}, f.journal.Kinds())
}

func TestBrowse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.installOld(t, "lib", "1.0.0")
	f.installOld(t, "util", "2.0.0")

	t.Run("all paginates interactive requesters", func(t *testing.T) {
		settings := DefaultSettings()
		settings.PageSize = 3
		m := New(f.store, f.host, nil, nil, f.lock, WithSettings(settings))

		page, err := m.Browse(ctx, user, BrowseQuery{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 2, page.MaxPage)
		assert.Equal(t, 4, page.Total)
		require.Len(t, page.Entries, 3)
		assert.Equal(t, "app", page.Entries[0].Record.ID)

		page, err = m.Browse(ctx, user, BrowseQuery{Page: 2})
		require.NoError(t, err)
		require.Len(t, page.Entries, 1)
		assert.Equal(t, "util", page.Entries[0].Record.ID)

		_, err = m.Browse(ctx, user, BrowseQuery{Page: 3})
		require.Error(t, err)
		assert.True(t, IsInvalidPage(err))
	})

	t.Run("non-interactive gets everything", func(t *testing.T) {
		page, err := f.manager.Browse(ctx, admin, BrowseQuery{Index: IndexAll})
		require.NoError(t, err)
		assert.Len(t, page.Entries, 4)
		assert.Equal(t, 1, page.MaxPage)
	})

	t.Run("installed index carries status", func(t *testing.T) {
		page, err := f.manager.Browse(ctx, admin, BrowseQuery{Index: IndexInstalled})
		require.NoError(t, err)
		require.Len(t, page.Entries, 2)
		assert.Equal(t, "lib", page.Entries[0].Record.ID)
		assert.Equal(t, StatusOutdated, page.Entries[0].Status)
		assert.Equal(t, "1.0.0", page.Entries[0].Installed)
		assert.Equal(t, StatusInstalled, page.Entries[1].Status)
	})

	t.Run("outdated index", func(t *testing.T) {
		page, err := f.manager.Browse(ctx, admin, BrowseQuery{Index: IndexOutdated})
		require.NoError(t, err)
		require.Len(t, page.Entries, 1)
		assert.Equal(t, "lib", page.Entries[0].Record.ID)
	})

	t.Run("label index sorted by name", func(t *testing.T) {
		page, err := f.manager.Browse(ctx, admin, BrowseQuery{Index: "tool", Sort: catalogue.SortByName})
		require.NoError(t, err)
		require.Len(t, page.Entries, 2)
		assert.Equal(t, "app", page.Entries[0].Record.ID)
		assert.Equal(t, "util", page.Entries[1].Record.ID)
		assert.Equal(t, StatusNotInstalled, page.Entries[0].Status)
	})

	t.Run("default label with no plugins", func(t *testing.T) {
		page, err := f.manager.Browse(ctx, admin, BrowseQuery{Index: "management"})
		require.NoError(t, err)
		assert.Empty(t, page.Entries)
	})

	t.Run("unknown index", func(t *testing.T) {
		_, err := f.manager.Browse(ctx, admin, BrowseQuery{Index: "games"})
		require.Error(t, err)
		assert.True(t, IsUnknownIndex(err))
	})

	t.Run("invalid sort key", func(t *testing.T) {
		_, err := f.manager.Browse(ctx, admin, BrowseQuery{Sort: "stars"})
		require.Error(t, err)
		assert.True(t, catalogue.IsInvalidSortKey(err))
	})
}

func TestSearch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	page, err := f.manager.Search(context.Background(), admin, "APP", 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "app", page.Entries[0].Record.ID)

	_, err = f.manager.Search(context.Background(), admin, "app", 2)
	assert.True(t, IsInvalidPage(err), "non-interactive listings have a single page")

	_, err = f.manager.Search(context.Background(), guest, "app", 1)
	assert.True(t, IsPermissionDenied(err))
}

func TestInfo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.installOld(t, "chat", "0.5.0")

	info, err := f.manager.Info(ctx, user, "chat")
	require.NoError(t, err)
	assert.Equal(t, "0.6.0", info.Latest.String())
	require.Len(t, info.Releases, InfoReleaseCount)
	assert.Equal(t, "0.6.0", info.Releases[0].Version.String())
	assert.Equal(t, "0.2.0", info.Releases[4].Version.String())
	require.NotNil(t, info.Installed)
	assert.Equal(t, StatusOutdated, info.Status)

	info, err = f.manager.Info(ctx, user, "app")
	require.NoError(t, err)
	assert.Equal(t, "应用", info.Description)
	assert.Nil(t, info.Installed)

	info, err = f.manager.Info(ctx, admin, "app")
	require.NoError(t, err)
	assert.Equal(t, "An app", info.Description)

	_, err = f.manager.Info(ctx, admin, "missing")
	assert.True(t, catalogue.IsPluginNotFound(err))
}

func TestListAndHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.installOld(t, "util", "2.0.0")
	f.installOld(t, "lib", "1.0.0")

	list, err := f.manager.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "lib", list[0].ID)

	require.NoError(t, f.manager.Reload(ctx, admin, "lib", f.replier))
	entries, err := f.manager.History(ctx, admin, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ports.JournalReload, entries[0].Kind)
}

func TestIndexes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	assert.Equal(t,
		[]string{"all", "installed", "outdated", "api", "information", "management", "tool"},
		f.manager.Indexes(),
	)
}
