package entitystore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store validates and persists entity configuration, keeping an in-memory
// cache of every valid entry.
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// the CRUD operations. All public methods are thread-safe.
type Store struct {
	repo     Repository
	registry *schema.Registry

	cache   map[string]*Entry
	cacheMu sync.RWMutex

	logger   Logger
	onChange func(Change)
	newID    func() string
}

// NewStore creates a store validating against reg.
func NewStore(repo Repository, reg *schema.Registry) *Store {
	return &Store{
		repo:     repo,
		registry: reg,
		cache:    make(map[string]*Entry),
		logger:   noopLogger{},
		newID:    newUniqueID,
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetOnChange registers a callback invoked after every successful create,
// update or delete. Pass nil to remove it.
func (s *Store) SetOnChange(fn func(Change)) {
	s.cacheMu.Lock()
	s.onChange = fn
	s.cacheMu.Unlock()
}

// Registry returns the schema registry the store validates against.
func (s *Store) Registry() *schema.Registry {
	return s.registry
}

// RefreshCache reloads all entries from the repository.
//
// Entries that no longer pass validation, for example after a platform was
// removed, are logged and left out of the cache but not deleted.
func (s *Store) RefreshCache(ctx context.Context) error {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}

	cache := make(map[string]*Entry, len(entries))
	skipped := 0
	for i := range entries {
		e := entries[i]
		data, err := s.registry.ValidateData(e.Platform, e.Data)
		if err != nil {
			skipped++
			s.logger.Warn("skipping invalid stored entity", "unique_id", e.UniqueID, "platform", e.Platform, "error", err)
			continue
		}
		e.Data = data
		cache[e.UniqueID] = e.DeepCopy()
	}

	s.cacheMu.Lock()
	s.cache = cache
	s.cacheMu.Unlock()

	s.logger.Info("entity store cache refreshed", "count", len(cache), "skipped", skipped)
	return nil
}

// Validate checks a create request without storing it.
func (s *Store) Validate(raw map[string]any) (schema.Record, error) {
	req, err := ParseCreate(s.registry, raw)
	if err != nil {
		return schema.Record{}, err
	}
	return req.Record, nil
}

// Create validates a create request and stores a new entry under a
// generated unique ID.
func (s *Store) Create(ctx context.Context, raw map[string]any) (*Entry, error) {
	req, err := ParseCreate(s.registry, raw)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		UniqueID: s.newID(),
		Platform: req.Record.Platform,
		Data:     req.Record.Data,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[entry.UniqueID] = entry.DeepCopy()
	onChange := s.onChange
	s.cacheMu.Unlock()

	s.logger.Info("entity created", "unique_id", entry.UniqueID, "platform", entry.Platform)
	notify(onChange, ChangeCreated, entry)
	return entry.DeepCopy(), nil
}

// Update validates an update request and replaces the stored data.
//
// Returns ErrEntityNotFound if the unique ID does not exist or belongs to
// a different platform.
func (s *Store) Update(ctx context.Context, raw map[string]any) (*Entry, error) {
	req, err := ParseUpdate(s.registry, raw)
	if err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, req.UniqueID)
	if err != nil {
		return nil, err
	}
	if existing.Platform != req.Record.Platform {
		return nil, fmt.Errorf("%w: %s is a %s entity, not %s",
			ErrEntityNotFound, req.UniqueID, existing.Platform, req.Record.Platform)
	}

	entry := &Entry{
		UniqueID:  req.UniqueID,
		Platform:  req.Record.Platform,
		Data:      req.Record.Data,
		CreatedAt: existing.CreatedAt,
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[entry.UniqueID] = entry.DeepCopy()
	onChange := s.onChange
	s.cacheMu.Unlock()

	s.logger.Info("entity updated", "unique_id", entry.UniqueID, "platform", entry.Platform)
	notify(onChange, ChangeUpdated, entry)
	return entry.DeepCopy(), nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, uniqueID string) error {
	existing, err := s.Get(ctx, uniqueID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, uniqueID); err != nil {
		return err
	}

	s.cacheMu.Lock()
	delete(s.cache, uniqueID)
	onChange := s.onChange
	s.cacheMu.Unlock()

	s.logger.Info("entity deleted", "unique_id", uniqueID, "platform", existing.Platform)
	notify(onChange, ChangeDeleted, existing)
	return nil
}

// Get retrieves an entry by unique ID. The returned entry is a deep copy.
func (s *Store) Get(ctx context.Context, uniqueID string) (*Entry, error) {
	s.cacheMu.RLock()
	cached, ok := s.cache[uniqueID]
	s.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	entry, err := s.repo.Get(ctx, uniqueID)
	if err != nil {
		return nil, err
	}
	data, err := s.registry.ValidateData(entry.Platform, entry.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, uniqueID, err)
	}
	entry.Data = data

	s.cacheMu.Lock()
	s.cache[uniqueID] = entry.DeepCopy()
	s.cacheMu.Unlock()

	return entry, nil
}

// List returns cached entries ordered by unique ID. An empty platform
// returns every entry.
func (s *Store) List(platform schema.Platform) []Entry {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	entries := make([]Entry, 0, len(s.cache))
	for _, e := range s.cache {
		if platform != "" && e.Platform != platform {
			continue
		}
		entries = append(entries, *e.DeepCopy())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UniqueID < entries[j].UniqueID })
	return entries
}

// Count returns the number of cached entries.
func (s *Store) Count() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return len(s.cache)
}

func notify(fn func(Change), kind ChangeKind, entry *Entry) {
	if fn == nil {
		return
	}
	fn(Change{Kind: kind, Entry: *entry.DeepCopy()})
}

func newUniqueID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return UniqueIDPrefix + id.String()
}
