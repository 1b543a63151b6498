package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"riskdash/pkg/domain"
)

// notifyChannel is the LISTEN/NOTIFY channel carrying the owner ID of every
// appended record.
const notifyChannel = "prediction_records"

const schema = `
CREATE TABLE IF NOT EXISTS prediction_records (
	id                  UUID PRIMARY KEY,
	owner_id            UUID NOT NULL,
	request             JSONB NOT NULL,
	default_probability DOUBLE PRECISION NOT NULL,
	explanation         JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	seq                 BIGSERIAL
);

CREATE INDEX IF NOT EXISTS prediction_records_owner_idx
	ON prediction_records (owner_id, created_at DESC, seq DESC);
`

// PostgresStore implements Store on Postgres. Live queries ride on
// LISTEN/NOTIFY: every append notifies the owner's subscribers, which then
// re-query and emit a fresh snapshot.
type PostgresStore struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger
}

// NewPostgres creates a Postgres-backed record store. The DSN is needed
// separately from db because each live query opens its own listener
// connection.
func NewPostgres(db *sql.DB, dsn string, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, dsn: dsn, logger: logger}
}

// Migrate creates the prediction_records table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate prediction_records: %w", err)
	}
	return nil
}

// Append inserts the record and notifies the owner's live queries in the
// same transaction.
func (s *PostgresStore) Append(ctx context.Context, rec Record) (domain.RecordID, error) {
	if rec.ID.IsNil() {
		rec.ID = domain.NewRecordID()
	}

	request, err := json.Marshal(rec.Request)
	if err != nil {
		return domain.RecordID{}, fmt.Errorf("marshal request payload: %w", err)
	}
	explanation, err := json.Marshal(rec.Explanation)
	if err != nil {
		return domain.RecordID{}, fmt.Errorf("marshal explanation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.RecordID{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prediction_records (id, owner_id, request, default_probability, explanation, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(rec.ID), uuid.UUID(rec.OwnerID), request, rec.DefaultProbability, explanation, rec.CreatedAt,
	)
	if err != nil {
		return domain.RecordID{}, fmt.Errorf("insert prediction record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, rec.OwnerID.String()); err != nil {
		return domain.RecordID{}, fmt.Errorf("notify prediction change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.RecordID{}, fmt.Errorf("commit append: %w", err)
	}
	return rec.ID, nil
}

// LiveQuery opens a listener connection scoped to one owner and streams full
// snapshots: one immediately, then one per relevant notification.
func (s *PostgresStore) LiveQuery(ctx context.Context, owner domain.UserID) (Subscription, error) {
	listener := pq.NewListener(s.dsn, time.Second, time.Minute, nil)
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	sub := &postgresSubscription{
		store:    s,
		owner:    owner,
		listener: listener,
		ch:       make(chan []Record, 1),
		done:     make(chan struct{}),
	}
	go sub.run()
	return sub, nil
}

func (s *PostgresStore) querySnapshot(ctx context.Context, owner domain.UserID) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, request, default_probability, explanation, created_at
		 FROM prediction_records
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, seq DESC`,
		uuid.UUID(owner),
	)
	if err != nil {
		return nil, fmt.Errorf("query prediction records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id          uuid.UUID
			ownerID     uuid.UUID
			request     []byte
			probability float64
			explanation []byte
			createdAt   time.Time
		)
		if err := rows.Scan(&id, &ownerID, &request, &probability, &explanation, &createdAt); err != nil {
			return nil, fmt.Errorf("scan prediction record: %w", err)
		}

		rec := Record{
			ID:                 domain.RecordID(id),
			OwnerID:            domain.UserID(ownerID),
			DefaultProbability: probability,
			CreatedAt:          createdAt,
		}
		if err := json.Unmarshal(request, &rec.Request); err != nil {
			return nil, fmt.Errorf("decode request payload: %w", err)
		}
		if err := json.Unmarshal(explanation, &rec.Explanation); err != nil {
			return nil, fmt.Errorf("decode explanation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type postgresSubscription struct {
	store    *PostgresStore
	owner    domain.UserID
	listener *pq.Listener
	ch       chan []Record
	done     chan struct{}
	once     sync.Once

	mu  sync.Mutex
	err error
}

func (sub *postgresSubscription) Snapshots() <-chan []Record { return sub.ch }

func (sub *postgresSubscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

func (sub *postgresSubscription) Close() error {
	sub.once.Do(func() {
		close(sub.done)
		sub.listener.Close()
	})
	return nil
}

// run emits the initial snapshot and then re-queries on every notification
// for this subscription's owner. A nil notification means the listener
// reconnected and events may have been missed, so it re-queries too.
func (sub *postgresSubscription) run() {
	defer close(sub.ch)

	ctx := context.Background()
	if !sub.emitSnapshot(ctx) {
		return
	}

	for {
		select {
		case <-sub.done:
			return
		case n, ok := <-sub.listener.Notify:
			if !ok {
				sub.fail(fmt.Errorf("listener connection lost"))
				return
			}
			if n != nil && n.Extra != sub.owner.String() {
				continue
			}
			if !sub.emitSnapshot(ctx) {
				return
			}
		}
	}
}

// emitSnapshot queries and delivers a snapshot; returns false when the
// subscription should end.
func (sub *postgresSubscription) emitSnapshot(ctx context.Context) bool {
	snapshot, err := sub.store.querySnapshot(ctx, sub.owner)
	if err != nil {
		select {
		case <-sub.done:
			// Closed mid-query; the error is a teardown artifact.
			return false
		default:
		}
		sub.store.logger.Error("prediction live query failed", "error", err, "owner_id", sub.owner.String())
		sub.fail(err)
		return false
	}

	// Conflate: a newer snapshot supersedes an undelivered older one.
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

func (sub *postgresSubscription) fail(err error) {
	select {
	case <-sub.done:
		return
	default:
	}
	sub.mu.Lock()
	sub.err = err
	sub.mu.Unlock()
	sub.listener.Close()
}

var _ Store = (*PostgresStore)(nil)
