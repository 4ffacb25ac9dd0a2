package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/quarantine-engine/internal/stream"
)

// Store is the in-memory, write-through Event Store.
// Every field is independently readable, writable and observable;
// concurrent writers are allowed and the last write per field wins.
type Store struct {
	// repo persists every change. It may be nil for a memory-only store.
	repo Repository

	// mu protects the field values and their broadcasters.
	mu sync.Mutex
	// times and flags are the live broadcasters, one per key.
	times map[Key]*stream.Latest[time.Time]
	flags map[Key]*stream.Latest[bool]

	// persistMu orders snapshot capture and Save so that the file always
	// ends up holding the newest snapshot.
	persistMu sync.Mutex
}

// Open loads the persisted snapshot from repo and returns a ready Store.
// A missing snapshot yields an empty store.
func Open(ctx context.Context, repo Repository) (*Store, error) {
	snapshot := NewSnapshot()

	if repo != nil {
		loaded, err := repo.Load(ctx)
		switch {
		case err == nil:
			if loaded != nil {
				snapshot = loaded
			}
		case errors.Is(err, ErrNotFound):
			// Keep the empty snapshot.
		default:
			return nil, fmt.Errorf("load event store: %w", err)
		}
	}

	return newStore(repo, snapshot), nil
}

// NewMemoryStore returns a Store that is not backed by any repository.
func NewMemoryStore() *Store {
	return newStore(nil, NewSnapshot())
}

func newStore(repo Repository, snapshot *Snapshot) *Store {
	s := &Store{
		repo:  repo,
		times: make(map[Key]*stream.Latest[time.Time], len(TimeKeys())),
		flags: make(map[Key]*stream.Latest[bool], len(FlagKeys())),
	}

	for _, key := range TimeKeys() {
		s.times[key] = stream.NewLatest(snapshot.Times[key].UTC())
	}

	for _, key := range FlagKeys() {
		s.flags[key] = stream.NewLatest(snapshot.Flags[key])
	}

	return s
}

// Time returns the accessor for a timestamp field.
// It panics on a key that is not a timestamp field, which is a programming error.
func (s *Store) Time(key Key) TimeField {
	if !IsTimeKey(key) {
		panic(fmt.Sprintf("%s: %q", ErrUnknownKey, key))
	}

	return TimeField{store: s, key: key}
}

// Flag returns the accessor for a boolean field.
// It panics on a key that is not a flag field, which is a programming error.
func (s *Store) Flag(key Key) FlagField {
	if !IsFlagKey(key) {
		panic(fmt.Sprintf("%s: %q", ErrUnknownKey, key))
	}

	return FlagField{store: s, key: key}
}

// Snapshot returns a copy of every present value.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// Update applies several field changes under one lock and persists them once.
// Changes are staged: they become visible to readers and observers only after
// the repository accepted them, so a failed save leaves the store untouched.
// Observers receive one notification per changed field.
func (s *Store) Update(ctx context.Context, apply func(b *Batch)) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()

	batch := &Batch{
		store: s,
		times: make(map[Key]time.Time),
		flags: make(map[Key]bool),
	}
	apply(batch)

	times, flags := batch.changes()
	snapshot := s.snapshotLocked()

	s.mu.Unlock()

	if len(times) == 0 && len(flags) == 0 {
		return nil
	}

	for key, at := range times {
		if at.IsZero() {
			delete(snapshot.Times, key)
		} else {
			snapshot.Times[key] = at
		}
	}

	for key, flag := range flags {
		snapshot.Flags[key] = flag
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, snapshot); err != nil {
			return fmt.Errorf("persist event store: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, at := range times {
		s.times[key].Publish(at)
	}

	for key, flag := range flags {
		s.flags[key].Publish(flag)
	}

	return nil
}

func (s *Store) snapshotLocked() *Snapshot {
	snapshot := NewSnapshot()

	for key, field := range s.times {
		if at, _ := field.Value(); !at.IsZero() {
			snapshot.Times[key] = at
		}
	}

	for key, field := range s.flags {
		flag, _ := field.Value()
		snapshot.Flags[key] = flag
	}

	return snapshot
}

// Batch is the mutation handle passed to Store.Update. It is only valid
// inside the callback; reads see the values staged earlier in the batch.
type Batch struct {
	// store is the owning store; its lock is held while the batch is alive.
	store *Store
	// times and flags hold the staged values.
	times map[Key]time.Time
	flags map[Key]bool
}

// Time reads a timestamp field inside the batch.
func (b *Batch) Time(key Key) time.Time {
	if at, ok := b.times[key]; ok {
		return at
	}

	at, _ := b.store.times[key].Value()

	return at
}

// SetTime stages at (normalized to UTC) for a timestamp field.
// A zero time clears the field.
func (b *Batch) SetTime(key Key, at time.Time) {
	if _, ok := b.store.times[key]; !ok {
		panic(fmt.Sprintf("%s: %q", ErrUnknownKey, key))
	}

	if !at.IsZero() {
		at = at.UTC()
	}

	b.times[key] = at
}

// ClearTime stages the removal of a timestamp field.
func (b *Batch) ClearTime(key Key) {
	b.SetTime(key, time.Time{})
}

// Flag reads a boolean field inside the batch.
func (b *Batch) Flag(key Key) bool {
	if flag, ok := b.flags[key]; ok {
		return flag
	}

	flag, _ := b.store.flags[key].Value()

	return flag
}

// SetFlag stages a boolean field.
func (b *Batch) SetFlag(key Key, value bool) {
	if _, ok := b.store.flags[key]; !ok {
		panic(fmt.Sprintf("%s: %q", ErrUnknownKey, key))
	}

	b.flags[key] = value
}

// changes returns the staged values that differ from the current ones.
func (b *Batch) changes() (map[Key]time.Time, map[Key]bool) {
	times := make(map[Key]time.Time)

	for key, at := range b.times {
		if current, _ := b.store.times[key].Value(); !current.Equal(at) {
			times[key] = at
		}
	}

	flags := make(map[Key]bool)

	for key, flag := range b.flags {
		if current, _ := b.store.flags[key].Value(); current != flag {
			flags[key] = flag
		}
	}

	return times, flags
}

// TimeField is the typed accessor of one timestamp field.
type TimeField struct {
	store *Store
	key   Key
}

// Key returns the field name.
func (f TimeField) Key() Key {
	return f.key
}

// Get returns the current value; the zero time means absent.
func (f TimeField) Get() time.Time {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	at, _ := f.store.times[f.key].Value()

	return at
}

// Set stores at and persists the store.
func (f TimeField) Set(ctx context.Context, at time.Time) error {
	return f.store.Update(ctx, func(b *Batch) { b.SetTime(f.key, at) })
}

// Clear removes the value and persists the store.
func (f TimeField) Clear(ctx context.Context) error {
	return f.store.Update(ctx, func(b *Batch) { b.ClearTime(f.key) })
}

// Observe yields the current value immediately and every change after it,
// until ctx is done.
func (f TimeField) Observe(ctx context.Context) <-chan time.Time {
	return f.store.times[f.key].Subscribe(ctx)
}

// FlagField is the typed accessor of one boolean field.
type FlagField struct {
	store *Store
	key   Key
}

// Key returns the field name.
func (f FlagField) Key() Key {
	return f.key
}

// Get returns the current value.
func (f FlagField) Get() bool {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	flag, _ := f.store.flags[f.key].Value()

	return flag
}

// Set stores value and persists the store.
func (f FlagField) Set(ctx context.Context, value bool) error {
	return f.store.Update(ctx, func(b *Batch) { b.SetFlag(f.key, value) })
}

// Observe yields the current value immediately and every change after it,
// until ctx is done.
func (f FlagField) Observe(ctx context.Context) <-chan bool {
	return f.store.flags[f.key].Subscribe(ctx)
}
