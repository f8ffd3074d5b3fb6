package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/facefind/facefind/internal/store"
)

// State describes the registry's knowledge of one event's index.
type State string

// Index lifecycle states. BUILDING is transient: callers block until the
// build finishes. A failed build leaves the state ABSENT so the next
// call retries.
const (
	StateReady    State = "ready"
	StateBuilding State = "building"
	StateAbsent   State = "absent"
)

// Status is the introspection view of one event's index.
type Status struct {
	State   State  `json:"state"`
	Entries int    `json:"entries"`
	Version uint64 `json:"version,omitempty"`
}

// RegistryConfig controls index construction and eviction.
type RegistryConfig struct {
	Dim     int
	Kind    Kind
	IdleTTL time.Duration // indexes idle longer than this are evicted
}

// DefaultIdleTTL is how long an unused index stays live.
const DefaultIdleTTL = 30 * time.Minute

// Registry owns the set of live per-event indexes. Indexes are built
// lazily from the record store on first use, kept current by ingest
// notifications, and evicted after sitting idle. Eviction only drops the
// in-memory structure; the store remains the source of truth and the
// index is rebuilt on demand.
type Registry struct {
	store store.RecordStore
	cfg   RegistryConfig

	mu       sync.Mutex
	live     map[string]*liveIndex
	building map[string]bool

	group    singleflight.Group
	stop     chan struct{}
	stopOnce sync.Once
}

// liveIndex pairs an index with its last-use time. lastUsed is guarded
// by the registry mutex.
type liveIndex struct {
	index    EventIndex
	lastUsed time.Time
}

// NewRegistry creates a registry and starts its eviction loop.
func NewRegistry(st store.RecordStore, cfg RegistryConfig) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Kind == "" {
		cfg.Kind = KindExact
	}
	r := &Registry{
		store:    st,
		cfg:      cfg,
		live:     make(map[string]*liveIndex),
		building: make(map[string]bool),
		stop:     make(chan struct{}),
	}
	go r.evictionLoop()
	return r
}

// Stop terminates the eviction loop.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// GetOrBuild returns the live index for an event, building it from the
// record store on first access. Concurrent first-access calls for the
// same event share a single build. A caller whose context is cancelled
// unblocks immediately; the build itself continues for the others.
func (r *Registry) GetOrBuild(ctx context.Context, eventID string) (EventIndex, error) {
	r.mu.Lock()
	if li, ok := r.live[eventID]; ok {
		li.lastUsed = time.Now()
		r.mu.Unlock()
		return li.index, nil
	}
	r.mu.Unlock()

	ch := r.group.DoChan(eventID, func() (any, error) {
		return r.build(context.WithoutCancel(ctx), eventID)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for index of event %s: %w", eventID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(EventIndex), nil
	}
}

// build loads the event's records and constructs a fresh index. On
// failure nothing is cached, so a retry can succeed once the store
// recovers.
func (r *Registry) build(ctx context.Context, eventID string) (EventIndex, error) {
	r.mu.Lock()
	r.building[eventID] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.building, eventID)
		r.mu.Unlock()
	}()

	start := time.Now()
	records, err := r.store.ListVectors(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading vectors for event %s: %w", eventID, err)
	}

	idx, err := New(r.cfg.Kind, r.cfg.Dim, records)
	if err != nil {
		return nil, fmt.Errorf("building index for event %s: %w", eventID, err)
	}

	r.mu.Lock()
	r.live[eventID] = &liveIndex{index: idx, lastUsed: time.Now()}
	r.mu.Unlock()

	log.Debug().
		Str("event_id", eventID).
		Int("entries", idx.Len()).
		Dur("took", time.Since(start)).
		Msg("event index built")
	return idx, nil
}

// OnUpsert applies a photo's replaced records to the live index, if one
// exists. A no-op otherwise: the store is updated first, so a lazy build
// on next access already reflects the new records.
func (r *Registry) OnUpsert(eventID, photoID string, records []store.FaceRecord) error {
	idx := r.lookup(eventID)
	if idx == nil {
		return nil
	}
	idx.RemovePhoto(photoID)
	for i := range records {
		if err := idx.Add(records[i].Key(), records[i].Embedding); err != nil {
			return fmt.Errorf("updating index for event %s: %w", eventID, err)
		}
	}
	return nil
}

// OnDeletePhoto removes a photo's entries from the live index, if any.
func (r *Registry) OnDeletePhoto(eventID, photoID string) {
	if idx := r.lookup(eventID); idx != nil {
		idx.RemovePhoto(photoID)
	}
}

// lookup returns the live index for an event and touches it, or nil.
func (r *Registry) lookup(eventID string) EventIndex {
	r.mu.Lock()
	defer r.mu.Unlock()
	li, ok := r.live[eventID]
	if !ok {
		return nil
	}
	li.lastUsed = time.Now()
	return li.index
}

// Invalidate drops the live index for an event, forcing a rebuild from
// the store on next access. Used after bulk operations or event deletion.
func (r *Registry) Invalidate(eventID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, eventID)
}

// Status reports the lifecycle state and entry count for an event.
func (r *Registry) Status(eventID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if li, ok := r.live[eventID]; ok {
		return Status{State: StateReady, Entries: li.index.Len(), Version: li.index.Version()}
	}
	if r.building[eventID] {
		return Status{State: StateBuilding}
	}
	return Status{State: StateAbsent}
}

// LiveCount returns how many indexes are currently held in memory.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// evictionLoop periodically drops indexes idle beyond the TTL. An
// in-flight query holds its own handle, so dropping the map entry never
// invalidates it.
func (r *Registry) evictionLoop() {
	interval := r.cfg.IdleTTL / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictIdle(time.Now())
		}
	}
}

// evictIdle drops every index whose last use is older than the TTL.
func (r *Registry) evictIdle(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for eventID, li := range r.live {
		if now.Sub(li.lastUsed) > r.cfg.IdleTTL {
			delete(r.live, eventID)
			log.Debug().
				Str("event_id", eventID).
				Int("entries", li.index.Len()).
				Msg("evicted idle event index")
		}
	}
}
