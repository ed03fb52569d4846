package catalogue

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/addonctl/internal/ports"
	"github.com/felixgeelhaar/addonctl/internal/testutil"
	"github.com/felixgeelhaar/addonctl/internal/testutil/mocks"
)

const testSource = "https://catalogue.example.invalid/meta.zip"

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, archive []byte) (*Store, *mocks.Fetcher, *fixedClock) {
	t.Helper()

	fetcher := mocks.NewFetcher()
	if archive != nil {
		fetcher.AddBody(testSource, archive)
	}
	clock := &fixedClock{now: time.Unix(1700000000, 0)}
	store := NewStore(t.TempDir(), testSource, fetcher, WithClock(clock.Now))
	return store, fetcher, clock
}

func sampleCatalogue() *testutil.CatalogueBuilder {
	return testutil.NewCatalogueBuilder().
		Plugin("foo",
			testutil.Named("Foo"),
			testutil.Labelled("tool"),
			testutil.Described(map[string]string{"en_us": "The foo plugin"}),
			testutil.Release("1.0.0"),
			testutil.Release("2.0.0", testutil.DependsOn("bar", ">=1.0"), testutil.Requires("requests>=2.0")),
			testutil.Release("3.0.0", testutil.WithAssets()),
		).
		Plugin("bar", testutil.Release("1.5.0")).
		Plugin("empty")
}

func TestStore_Refresh(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore(t, sampleCatalogue().Archive(t))
	assert.True(t, store.IsStale(time.Hour))

	require.NoError(t, store.Refresh(context.Background()))

	foo, ok := store.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "Foo", foo.Name)
	assert.Equal(t, []string{"tool"}, foo.Labels)
	assert.Equal(t, "The foo plugin", foo.Description.Text("en_us"))
	require.Len(t, foo.Releases, 2, "asset-less release is excluded")
	assert.Equal(t, "2.0.0", foo.Latest().String())
	assert.Equal(t, map[string]string{"bar": ">=1.0"}, foo.Releases[0].Dependencies)
	assert.Equal(t, []string{"requests>=2.0"}, foo.Releases[0].Requirements)

	empty, ok := store.Get("empty")
	require.True(t, ok)
	assert.True(t, empty.Latest().IsSentinel())

	assert.Equal(t, int64(1700000000), store.LastRefresh().Unix())
	assert.False(t, store.IsStale(time.Hour))
	testutil.AssertFileContent(t, filepath.Join(store.Dir(), "last_update"), "1700000000")
	testutil.AssertFileExists(t, filepath.Join(store.Dir(), "catalogue", "PluginCatalogue-meta", "foo", "meta.json"))
	assert.ElementsMatch(t, []string{"catalogue", "last_update"}, testutil.ListDir(t, store.Dir()))
}

func TestStore_LoadAfterRefresh(t *testing.T) {
	t.Parallel()

	store, fetcher, _ := newTestStore(t, sampleCatalogue().Archive(t))
	require.NoError(t, store.Refresh(context.Background()))

	reloaded := NewStore(store.Dir(), testSource, fetcher)
	require.NoError(t, reloaded.Load(context.Background()))

	assert.Equal(t, store.Snapshot().IDs(), reloaded.Snapshot().IDs())
	assert.Equal(t, store.LastRefresh().Unix(), reloaded.LastRefresh().Unix())
	assert.Len(t, fetcher.Calls(), 1, "load never touches the network")
}

func TestStore_LoadMissingCache(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore(t, nil)
	err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsCatalogueLoad(err))
	assert.Equal(t, 0, store.Snapshot().Len())
}

func TestStore_LoadMalformedCache(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore(t, nil)
	testutil.WriteTempFile(t, store.Dir(), "catalogue/foo/meta.json", "{not json")

	err := store.Load(context.Background())
	assert.True(t, IsCatalogueLoad(err))
}

func TestStore_RefreshFailuresLeaveSnapshotUntouched(t *testing.T) {
	t.Parallel()

	valid := sampleCatalogue().Archive(t)

	tests := []struct {
		name      string
		configure func(t *testing.T, f *mocks.Fetcher)
		check     func(t *testing.T, err error)
	}{
		{
			name: "not a zip",
			configure: func(_ *testing.T, f *mocks.Fetcher) {
				f.AddBody(testSource, []byte("<html>rate limited</html>"))
			},
			check: func(t *testing.T, err error) { assert.True(t, IsCatalogueCorruption(err)) },
		},
		{
			name: "checksum mismatch",
			configure: func(t *testing.T, f *mocks.Fetcher) {
				f.AddBody(testSource, corruptedArchive(t))
			},
			check: func(t *testing.T, err error) { assert.True(t, IsCatalogueCorruption(err)) },
		},
		{
			name: "path traversal",
			configure: func(t *testing.T, f *mocks.Fetcher) {
				f.AddBody(testSource, rawArchive(t, map[string]string{"../escape/meta.json": "{}"}))
			},
			check: func(t *testing.T, err error) { assert.True(t, IsCatalogueCorruption(err)) },
		},
		{
			name: "no plugin directories",
			configure: func(t *testing.T, f *mocks.Fetcher) {
				f.AddBody(testSource, rawArchive(t, map[string]string{"README.md": "hello"}))
			},
			check: func(t *testing.T, err error) {
				assert.True(t, IsCatalogueCorruption(err))
				assert.ErrorIs(t, err, ErrNoCatalogueRoot)
			},
		},
		{
			name: "malformed metadata",
			configure: func(t *testing.T, f *mocks.Fetcher) {
				f.AddBody(testSource, rawArchive(t, map[string]string{"root/foo/meta.json": "{"}))
			},
			check: func(t *testing.T, err error) { assert.True(t, IsCatalogueCorruption(err)) },
		},
		{
			name: "network failure",
			configure: func(_ *testing.T, f *mocks.Fetcher) {
				f.AddError(testSource, &ports.NetworkError{URL: testSource, Err: errors.New("connection reset")})
			},
			check: func(t *testing.T, err error) { assert.True(t, ports.IsNetworkError(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, fetcher, clock := newTestStore(t, valid)
			require.NoError(t, store.Refresh(context.Background()))
			before := store.Snapshot()
			beforeIDs := before.IDs()

			clock.Advance(time.Hour)
			tt.configure(t, fetcher)
			err := store.Refresh(context.Background())
			require.Error(t, err)
			tt.check(t, err)

			assert.Same(t, before, store.Snapshot())
			assert.Equal(t, beforeIDs, store.Snapshot().IDs())
			assert.Equal(t, int64(1700000000), store.LastRefresh().Unix())
			testutil.AssertFileContent(t, filepath.Join(store.Dir(), "last_update"), "1700000000")
			assert.ElementsMatch(t, []string{"catalogue", "last_update"}, testutil.ListDir(t, store.Dir()),
				"temporary files are discarded")

			got, err := store.Filter(Query{Sort: SortByName})
			require.NoError(t, err)
			want, err := before.Filter(Query{Sort: SortByName})
			require.NoError(t, err)
			assert.Equal(t, ids(want), ids(got))
		})
	}
}

func TestStore_ResolveRelease(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore(t, sampleCatalogue().Archive(t))
	require.NoError(t, store.Refresh(context.Background()))

	r, err := store.ResolveRelease("foo", AnyRequirement())
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", r.Version.String())

	r, err = store.ResolveRelease("foo", MustParseRequirement("<2.0.0"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", r.Version.String())

	_, err = store.ResolveRelease("foo", MustParseRequirement(">=3.0.0"))
	require.Error(t, err)
	assert.True(t, IsNoMatchingRelease(err))
	assert.False(t, IsPluginNotFound(err))

	_, err = store.ResolveRelease("ghost", AnyRequirement())
	assert.True(t, IsNoMatchingRelease(err))
	assert.True(t, IsPluginNotFound(err))
}

func TestStore_IsStale(t *testing.T) {
	t.Parallel()

	store, _, clock := newTestStore(t, sampleCatalogue().Archive(t))
	require.NoError(t, store.Refresh(context.Background()))

	clock.Advance(29 * time.Minute)
	assert.False(t, store.IsStale(30*time.Minute))
	clock.Advance(time.Minute)
	assert.True(t, store.IsStale(30*time.Minute))
}

func TestStore_ReadersNeverSeeMixedSnapshots(t *testing.T) {
	t.Parallel()

	gen := func(version string) []byte {
		return testutil.NewCatalogueBuilder().
			Plugin("a", testutil.Release(version)).
			Plugin("b", testutil.Release(version)).
			Archive(t)
	}
	archives := [][]byte{gen("1.0.0"), gen("2.0.0")}

	store, fetcher, _ := newTestStore(t, archives[0])
	require.NoError(t, store.Refresh(context.Background()))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := store.Snapshot()
				a, okA := snap.Get("a")
				b, okB := snap.Get("b")
				if assert.True(t, okA && okB) {
					assert.Equal(t, a.Latest().String(), b.Latest().String())
				}
			}
		}()
	}

	for i := 0; i < 6; i++ {
		fetcher.AddBody(testSource, archives[i%2])
		require.NoError(t, store.Refresh(context.Background()))
	}
	close(stop)
	wg.Wait()
}

func rawArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// corruptedArchive stores an entry uncompressed and flips a byte of its payload
// so only the CRC-32 check can notice.
func corruptedArchive(t *testing.T) []byte {
	t.Helper()

	payload := []byte(`{"id": "foo", "name": "Foo"}`)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "root/foo/meta.json", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	data := buf.Bytes()
	idx := bytes.Index(data, payload)
	require.GreaterOrEqual(t, idx, 0)
	data[idx+8] ^= 0xff
	return data
}
