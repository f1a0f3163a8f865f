package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/events"
	"meridian/internal/metrics"
	"meridian/internal/publish"
	"meridian/internal/repo"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Now       func() time.Time
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
	Publisher publish.Publisher

	locks *keyedMutex
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Config:    cfg,
		Now:       time.Now,
		Log:       zerolog.Nop(),
		Publisher: publish.Nop{},
		locks:     newKeyedMutex(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(repo.TimestampLayout)
}

func (e Engine) today() string {
	return e.now().UTC().Format(repo.DateLayout)
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, workstreamID, entityKind, entityID, actorID string, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	if actorID == "" {
		actorID = "local-user"
	}
	return w.Append(ctx, tx, evtType, workstreamID, entityKind, entityID, actorID, payload)
}

// lock serializes scoring of one workstream. Engines built without New share
// nothing and skip locking.
func (e Engine) lock(workstreamID string) func() {
	if e.locks == nil {
		return func() {}
	}
	return e.locks.Lock(workstreamID)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*refMutex{}}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func newID() string {
	return uuid.NewString()
}

func parseDay(field, v string) (time.Time, error) {
	t, err := time.Parse(repo.DateLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, invalid(field, "expected YYYY-MM-DD, got %q", v)
	}
	return t, nil
}
