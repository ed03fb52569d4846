package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_TryAcquire(t *testing.T) {
	t.Parallel()

	l := New()
	release, err := l.TryAcquire("install foo")
	require.NoError(t, err)
	assert.True(t, l.Held())

	holder, ok := l.Holder()
	require.True(t, ok)
	assert.Equal(t, "install foo", holder.Operation)

	_, err = l.TryAcquire("disable bar")
	require.Error(t, err)
	assert.True(t, IsSessionBusy(err))
	assert.Contains(t, err.Error(), "install foo")

	release()
	assert.False(t, l.Held())

	release2, err := l.TryAcquire("disable bar")
	require.NoError(t, err)
	release()
	assert.True(t, l.Held(), "a stale release must not free a newer holder")
	release2()
	assert.False(t, l.Held())
}

func TestLock_Run(t *testing.T) {
	t.Parallel()

	l := New()
	boom := errors.New("boom")

	err := l.Run("install", func() error {
		assert.True(t, l.Held())
		inner := l.Run("upgrade", func() error { return nil })
		assert.True(t, IsSessionBusy(inner))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, l.Held(), "released after failure")
}

func TestLock_ConcurrentCallersNeverBothProceed(t *testing.T) {
	t.Parallel()

	l := New()
	const workers = 64

	var (
		inside    atomic.Int32
		maxInside atomic.Int32
		succeeded atomic.Int32
		busy      atomic.Int32
		start     = make(chan struct{})
		wg        sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := l.Run("op", func() error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				inside.Add(-1)
				return nil
			})
			if err != nil {
				assert.True(t, IsSessionBusy(err))
				busy.Add(1)
				return
			}
			succeeded.Add(1)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.GreaterOrEqual(t, succeeded.Load(), int32(1))
	assert.Equal(t, int32(workers), succeeded.Load()+busy.Load())
}

func TestLock_FileExcludesOtherInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "session.lock")
	daemon := New(WithFile(path))
	cli := New(WithFile(path))
	assert.Equal(t, path, cli.Path())

	release, err := cli.TryAcquire("install foo")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = daemon.TryAcquire("scheduled refresh")
	require.Error(t, err)
	assert.True(t, IsSessionBusy(err))
	assert.Contains(t, err.Error(), "install foo")
	assert.Contains(t, err.Error(), fmt.Sprintf("pid %d", os.Getpid()))
	assert.False(t, daemon.Held(), "a failed file lock must not leave the local holder set")

	release()
	release()

	releaseDaemon, err := daemon.TryAcquire("scheduled refresh")
	require.NoError(t, err)
	_, err = cli.TryAcquire("install foo")
	assert.True(t, IsSessionBusy(err))
	releaseDaemon()

	releaseCLI, err := cli.TryAcquire("install foo")
	require.NoError(t, err)
	releaseCLI()
}

func TestLock_FileInstancesNeverBothProceed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.lock")
	locks := []*Lock{New(WithFile(path)), New(WithFile(path))}
	const rounds = 50

	var (
		inside    atomic.Int32
		maxInside atomic.Int32
		wg        sync.WaitGroup
		start     = make(chan struct{})
	)

	for _, l := range locks {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(l *Lock) {
				defer wg.Done()
				<-start
				for i := 0; i < rounds; i++ {
					err := l.Run("op", func() error {
						n := inside.Add(1)
						for {
							m := maxInside.Load()
							if n <= m || maxInside.CompareAndSwap(m, n) {
								break
							}
						}
						inside.Add(-1)
						return nil
					})
					if err != nil {
						assert.True(t, IsSessionBusy(err))
					}
				}
			}(l)
		}
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	for _, l := range locks {
		release, err := l.TryAcquire("after")
		require.NoError(t, err, "every release must drop the file lock")
		release()
	}
}

func TestLock_FileOpenFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	l := New(WithFile(filepath.Join(blocker, "session.lock")))
	_, err := l.TryAcquire("install foo")
	require.Error(t, err)
	assert.False(t, IsSessionBusy(err))
	assert.False(t, l.Held())
}
