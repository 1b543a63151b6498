package record

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"riskdash/pkg/domain"
)

// redisChannel carries the owner ID of every appended record.
const redisChannel = "riskdash:predictions:changed"

// RedisStore implements Store on Redis. Records live in per-owner lists,
// newest first; pub/sub notifications drive live-query re-reads.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis creates a Redis-backed record store.
func NewRedis(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger}
}

func ownerKey(owner domain.UserID) string {
	return "riskdash:predictions:" + owner.String()
}

// Append pushes the record onto the owner's list and publishes a change
// notification in one pipeline.
func (s *RedisStore) Append(ctx context.Context, rec Record) (domain.RecordID, error) {
	if rec.ID.IsNil() {
		rec.ID = domain.NewRecordID()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.RecordID{}, fmt.Errorf("marshal prediction record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, ownerKey(rec.OwnerID), payload)
	pipe.Publish(ctx, redisChannel, rec.OwnerID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.RecordID{}, fmt.Errorf("append prediction record: %w", err)
	}
	return rec.ID, nil
}

// LiveQuery subscribes to change notifications for one owner and streams
// full snapshots: one immediately, then one per relevant notification.
func (s *RedisStore) LiveQuery(ctx context.Context, owner domain.UserID) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, redisChannel)
	// Force the subscription onto the wire before the initial snapshot so no
	// append slips between them unseen.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", redisChannel, err)
	}

	sub := &redisSubscription{
		store:  s,
		owner:  owner,
		pubsub: pubsub,
		ch:     make(chan []Record, 1),
		done:   make(chan struct{}),
	}
	go sub.run()
	return sub, nil
}

func (s *RedisStore) querySnapshot(ctx context.Context, owner domain.UserID) ([]Record, error) {
	raw, err := s.client.LRange(ctx, ownerKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read prediction records: %w", err)
	}

	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode prediction record: %w", err)
		}
		out = append(out, rec)
	}

	// The list is already newest-first by insertion; the stable sort only
	// reorders records whose timestamps are out of insertion order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type redisSubscription struct {
	store  *RedisStore
	owner  domain.UserID
	pubsub *redis.PubSub
	ch     chan []Record
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

func (sub *redisSubscription) Snapshots() <-chan []Record { return sub.ch }

func (sub *redisSubscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

func (sub *redisSubscription) Close() error {
	sub.once.Do(func() {
		close(sub.done)
		sub.pubsub.Close()
	})
	return nil
}

func (sub *redisSubscription) run() {
	defer close(sub.ch)

	ctx := context.Background()
	if !sub.emitSnapshot(ctx) {
		return
	}

	msgs := sub.pubsub.Channel()
	for {
		select {
		case <-sub.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				sub.fail(fmt.Errorf("pubsub connection lost"))
				return
			}
			if msg.Payload != sub.owner.String() {
				continue
			}
			if !sub.emitSnapshot(ctx) {
				return
			}
		}
	}
}

func (sub *redisSubscription) emitSnapshot(ctx context.Context) bool {
	snapshot, err := sub.store.querySnapshot(ctx, sub.owner)
	if err != nil {
		select {
		case <-sub.done:
			return false
		default:
		}
		sub.store.logger.Error("prediction live query failed", "error", err, "owner_id", sub.owner.String())
		sub.fail(err)
		return false
	}

	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snapshot:
	case <-sub.done:
		return false
	}
	return true
}

func (sub *redisSubscription) fail(err error) {
	select {
	case <-sub.done:
		return
	default:
	}
	sub.mu.Lock()
	sub.err = err
	sub.mu.Unlock()
	sub.pubsub.Close()
}

var _ Store = (*RedisStore)(nil)
