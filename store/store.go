package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hrygo/assistcache/internal/profile"
	"github.com/hrygo/assistcache/store/cache"
)

const (
	// hotCacheTTL bounds how long a read can be served from memory without
	// touching the database.
	hotCacheTTL = 10 * time.Minute
	// hotCacheMaxItems caps the in-memory hot layer.
	hotCacheMaxItems = 1000
)

// OpenDriverFunc opens a driver for the given profile. The store calls it on
// first use and again after Close, so the returned driver must be fresh.
type OpenDriverFunc func(profile *profile.Profile) (Driver, error)

// OpenError reports a failure to open or migrate the durable store.
type OpenError struct {
	Driver string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open %s store: %v", e.Driver, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// hotEntry wraps an assistant with its durable cache timestamp so the hot
// layer never outlives the record TTL.
type hotEntry struct {
	assistant *Assistant
	cachedTs  int64
}

// Store provides database access to cached assistants and the pending-write
// queue. One Store owns one driver connection; multiple stores may point at
// the same DSN with eventual cross-instance visibility.
type Store struct {
	profile *profile.Profile
	open    OpenDriverFunc

	mu     sync.Mutex
	driver Driver

	// Hot in-memory layer in front of GetAssistantByID.
	assistantCache *cache.LRU[hotEntry]

	nowFn func() time.Time
}

// New creates a new instance of Store. The driver is not opened until Init or
// the first operation.
func New(profile *profile.Profile, open OpenDriverFunc) *Store {
	return &Store{
		profile:        profile,
		open:           open,
		assistantCache: cache.New[hotEntry](hotCacheMaxItems, hotCacheTTL),
		nowFn:          time.Now,
	}
}

// Init opens the driver and migrates the schema. It is idempotent: concurrent
// callers share one in-flight initialization and later calls return
// immediately. Failures surface as *OpenError.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.driverLocked(ctx)
	return err
}

// ensureDriver returns the open driver, initializing it first if needed.
// Operations after Close transparently re-initialize through here.
func (s *Store) ensureDriver(ctx context.Context) (Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driverLocked(ctx)
}

func (s *Store) driverLocked(ctx context.Context) (Driver, error) {
	if s.driver != nil {
		return s.driver, nil
	}
	driver, err := s.open(s.profile)
	if err != nil {
		return nil, &OpenError{Driver: s.profile.Driver, Err: err}
	}
	if err := s.migrate(ctx, driver); err != nil {
		_ = driver.Close()
		return nil, &OpenError{Driver: s.profile.Driver, Err: err}
	}
	s.driver = driver
	return s.driver, nil
}

// GetDriver returns the open driver. Intended for tests and one-off
// maintenance; callers must have initialized the store.
func (s *Store) GetDriver(ctx context.Context) (Driver, error) {
	return s.ensureDriver(ctx)
}

// Close releases the driver connection. The store remains usable: the next
// operation re-initializes.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistantCache.Clear()
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close()
	s.driver = nil
	return err
}

// SetNowFunc overrides the store clock. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.nowFn = fn
}

func (s *Store) now() int64 {
	return s.nowFn().UnixMilli()
}
