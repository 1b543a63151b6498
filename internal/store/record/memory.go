package record

import (
	"context"
	"sort"
	"sync"

	"riskdash/pkg/domain"
)

// MemoryStore implements Store with in-process state. It backs unit tests
// and local development; production uses the Postgres or Redis stores.
type MemoryStore struct {
	mu      sync.Mutex
	records []memoryRecord
	seq     uint64
	subs    map[int]*memorySubscription
	nextSub int
}

type memoryRecord struct {
	rec Record
	seq uint64
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[int]*memorySubscription)}
}

// Append persists the record and pushes a fresh snapshot to every
// subscription watching the record's owner.
func (s *MemoryStore) Append(ctx context.Context, rec Record) (domain.RecordID, error) {
	if rec.ID.IsNil() {
		rec.ID = domain.NewRecordID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.records = append(s.records, memoryRecord{rec: rec, seq: s.seq})

	for _, sub := range s.subs {
		if sub.owner == rec.OwnerID {
			sub.push(s.snapshotLocked(sub.owner))
		}
	}
	return rec.ID, nil
}

// LiveQuery opens an owner-scoped subscription and delivers the current
// snapshot immediately.
func (s *MemoryStore) LiveQuery(ctx context.Context, owner domain.UserID) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &memorySubscription{
		store: s,
		owner: owner,
		ch:    make(chan []Record, 1),
	}
	sub.id = s.nextSub
	s.nextSub++
	s.subs[sub.id] = sub

	sub.push(s.snapshotLocked(owner))
	return sub, nil
}

// snapshotLocked builds the owner's records ordered by CreatedAt descending,
// ties newest-insertion-first. Caller holds s.mu.
func (s *MemoryStore) snapshotLocked(owner domain.UserID) []Record {
	var matched []memoryRecord
	for _, mr := range s.records {
		if mr.rec.OwnerID == owner {
			matched = append(matched, mr)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].rec.CreatedAt.Equal(matched[j].rec.CreatedAt) {
			return matched[i].rec.CreatedAt.After(matched[j].rec.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	out := make([]Record, len(matched))
	for i, mr := range matched {
		out[i] = mr.rec
	}
	return out
}

type memorySubscription struct {
	store *MemoryStore
	owner domain.UserID
	id    int
	ch    chan []Record
	once  sync.Once
}

func (sub *memorySubscription) Snapshots() <-chan []Record { return sub.ch }

// Err is always nil for the memory store: the in-process listener cannot
// fail, it can only be closed.
func (sub *memorySubscription) Err() error { return nil }

func (sub *memorySubscription) Close() error {
	sub.once.Do(func() {
		sub.store.mu.Lock()
		delete(sub.store.subs, sub.id)
		sub.store.mu.Unlock()
		close(sub.ch)
	})
	return nil
}

// push conflates pending snapshots: a newer snapshot fully supersedes an
// undelivered older one. Caller holds the store lock, so the subscription
// cannot be concurrently closed.
func (sub *memorySubscription) push(snapshot []Record) {
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- snapshot
}

// Compile-time interface checks.
var (
	_ Store        = (*MemoryStore)(nil)
	_ Subscription = (*memorySubscription)(nil)
)
