// Package session provides the system-wide guard over mutating operations.
// Callers in one process race on an atomic pointer; separate processes
// sharing a data directory race on an advisory lock file.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Holder describes the operation currently holding the lock.
type Holder struct {
	Operation  string
	AcquiredAt time.Time
}

// SessionBusyError is returned when another mutating operation is in flight.
type SessionBusyError struct {
	Holder Holder
}

func (e *SessionBusyError) Error() string {
	return fmt.Sprintf("another operation (%s) is in progress, try again later", e.Holder.Operation)
}

// IsSessionBusy reports whether err is a SessionBusyError.
func IsSessionBusy(err error) bool {
	var e *SessionBusyError
	return errors.As(err, &e)
}

// Lock is a fail-fast mutual exclusion token. Acquisition is a single
// compare-and-swap, followed by a non-blocking file lock when a path is
// configured; there is no queueing and no blocking wait.
type Lock struct {
	holder atomic.Pointer[Holder]
	now    func() time.Time
	path   string
}

// Option configures a Lock.
type Option func(*Lock)

// WithFile makes the lock exclusive across processes through the lock
// file at path. The file is created on first use and never removed.
func WithFile(path string) Option {
	return func(l *Lock) { l.path = path }
}

// New creates an unheld lock.
func New(opts ...Option) *Lock {
	l := &Lock{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the lock file path, empty for an in-process lock.
func (l *Lock) Path() string {
	return l.path
}

// TryAcquire takes the lock for operation or fails with SessionBusyError.
// The returned release function is idempotent.
func (l *Lock) TryAcquire(operation string) (release func(), err error) {
	h := &Holder{Operation: operation, AcquiredAt: l.now()}
	if !l.holder.CompareAndSwap(nil, h) {
		current := l.holder.Load()
		if current == nil {
			// Released between the swap and the load; report the attempt as busy anyway.
			return nil, &SessionBusyError{Holder: Holder{Operation: "unknown"}}
		}
		return nil, &SessionBusyError{Holder: *current}
	}

	unlock := func() {}
	if l.path != "" {
		unlock, err = l.lockFile(h)
		if err != nil {
			l.holder.CompareAndSwap(h, nil)
			return nil, err
		}
	}

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			unlock()
			l.holder.CompareAndSwap(h, nil)
		}
	}, nil
}

// holderRecord is the lock file content, read by whoever loses the race.
type holderRecord struct {
	PID        int       `json:"pid"`
	Operation  string    `json:"operation"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func (l *Lock) lockFile(h *Holder) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	locked, err := tryLockFile(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", l.path, err)
	}
	if !locked {
		busy := readHolder(f)
		_ = f.Close()
		return nil, &SessionBusyError{Holder: busy}
	}

	data, _ := json.Marshal(holderRecord{PID: os.Getpid(), Operation: h.Operation, AcquiredAt: h.AcquiredAt})
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt(data, 0)
	}

	return func() {
		_ = f.Truncate(0)
		_ = unlockFile(f)
		_ = f.Close()
	}, nil
}

// readHolder reports the other process's operation. The file may be empty
// if the holder has not written it yet.
func readHolder(f *os.File) Holder {
	data, err := os.ReadFile(f.Name())
	if err != nil || len(data) == 0 {
		return Holder{Operation: "another process"}
	}
	var rec holderRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Operation == "" {
		return Holder{Operation: "another process"}
	}
	return Holder{
		Operation:  fmt.Sprintf("%s, pid %d", rec.Operation, rec.PID),
		AcquiredAt: rec.AcquiredAt,
	}
}

// Run executes fn while holding the lock.
func (l *Lock) Run(operation string, fn func() error) error {
	release, err := l.TryAcquire(operation)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Holder returns the current holder in this process, if any.
func (l *Lock) Holder() (Holder, bool) {
	h := l.holder.Load()
	if h == nil {
		return Holder{}, false
	}
	return *h, true
}

// Held reports whether the lock is taken.
func (l *Lock) Held() bool {
	return l.holder.Load() != nil
}
