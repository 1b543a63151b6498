package record

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"riskdash/internal/scoring"
	"riskdash/pkg/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()
}

func testRecord(owner domain.UserID, probability float64, createdAt time.Time) Record {
	req, _ := scoring.BuildRequest(scoring.DefaultForm(), scoring.StandardDefaults)
	return Record{
		OwnerID:            owner,
		Request:            req,
		DefaultProbability: probability,
		Explanation:        map[string]float64{"int_rate": 0.2},
		CreatedAt:          createdAt,
	}
}

func receiveSnapshot(s *MemoryStoreSuite, sub Subscription) []Record {
	select {
	case snapshot, ok := <-sub.Snapshots():
		s.Require().True(ok, "subscription ended unexpectedly")
		return snapshot
	case <-time.After(time.Second):
		s.Require().FailNow("timed out waiting for snapshot")
		return nil
	}
}

func (s *MemoryStoreSuite) TestAppendAssignsID() {
	owner := domain.UserID(uuid.New())

	id, err := s.store.Append(s.ctx, testRecord(owner, 0.3, time.Now()))
	s.Require().NoError(err)
	s.False(id.IsNil())
}

func (s *MemoryStoreSuite) TestLiveQueryEmitsInitialSnapshot() {
	owner := domain.UserID(uuid.New())
	_, err := s.store.Append(s.ctx, testRecord(owner, 0.3, time.Now()))
	s.Require().NoError(err)

	sub, err := s.store.LiveQuery(s.ctx, owner)
	s.Require().NoError(err)
	defer sub.Close()

	snapshot := receiveSnapshot(s, sub)
	s.Require().Len(snapshot, 1)
	s.Equal(0.3, snapshot[0].DefaultProbability)
}

func (s *MemoryStoreSuite) TestAppendPushesFreshSnapshot() {
	owner := domain.UserID(uuid.New())

	sub, err := s.store.LiveQuery(s.ctx, owner)
	s.Require().NoError(err)
	defer sub.Close()

	s.Empty(receiveSnapshot(s, sub), "initial snapshot should be empty")

	_, err = s.store.Append(s.ctx, testRecord(owner, 0.7, time.Now()))
	s.Require().NoError(err)

	snapshot := receiveSnapshot(s, sub)
	s.Require().Len(snapshot, 1)
	s.Equal(0.7, snapshot[0].DefaultProbability)
}

func (s *MemoryStoreSuite) TestSnapshotsAreOwnerScoped() {
	ownerA := domain.UserID(uuid.New())
	ownerB := domain.UserID(uuid.New())

	_, err := s.store.Append(s.ctx, testRecord(ownerA, 0.1, time.Now()))
	s.Require().NoError(err)
	_, err = s.store.Append(s.ctx, testRecord(ownerB, 0.9, time.Now()))
	s.Require().NoError(err)

	sub, err := s.store.LiveQuery(s.ctx, ownerA)
	s.Require().NoError(err)
	defer sub.Close()

	snapshot := receiveSnapshot(s, sub)
	s.Require().Len(snapshot, 1)
	s.Equal(ownerA, snapshot[0].OwnerID)
}

func (s *MemoryStoreSuite) TestSnapshotOrderNewestFirst() {
	owner := domain.UserID(uuid.New())
	base := time.Now()

	_, err := s.store.Append(s.ctx, testRecord(owner, 0.1, base.Add(-2*time.Hour)))
	s.Require().NoError(err)
	_, err = s.store.Append(s.ctx, testRecord(owner, 0.3, base))
	s.Require().NoError(err)
	_, err = s.store.Append(s.ctx, testRecord(owner, 0.2, base.Add(-time.Hour)))
	s.Require().NoError(err)

	sub, err := s.store.LiveQuery(s.ctx, owner)
	s.Require().NoError(err)
	defer sub.Close()

	snapshot := receiveSnapshot(s, sub)
	s.Require().Len(snapshot, 3)
	s.Equal(0.3, snapshot[0].DefaultProbability)
	s.Equal(0.2, snapshot[1].DefaultProbability)
	s.Equal(0.1, snapshot[2].DefaultProbability)
}

func (s *MemoryStoreSuite) TestEqualTimestampsKeepInsertionOrderNewestFirst() {
	owner := domain.UserID(uuid.New())
	at := time.Now()

	first, err := s.store.Append(s.ctx, testRecord(owner, 0.1, at))
	s.Require().NoError(err)
	second, err := s.store.Append(s.ctx, testRecord(owner, 0.2, at))
	s.Require().NoError(err)

	sub, err := s.store.LiveQuery(s.ctx, owner)
	s.Require().NoError(err)
	defer sub.Close()

	snapshot := receiveSnapshot(s, sub)
	s.Require().Len(snapshot, 2)
	s.Equal(second, snapshot[0].ID)
	s.Equal(first, snapshot[1].ID)
}

func (s *MemoryStoreSuite) TestSnapshotsConflate() {
	owner := domain.UserID(uuid.New())

	sub, err := s.store.LiveQuery(s.ctx, owner)
	s.Require().NoError(err)
	defer sub.Close()

	// Do not read the initial snapshot; later appends must supersede it.
	for i := 0; i < 3; i++ {
		_, err = s.store.Append(s.ctx, testRecord(owner, float64(i+1)/10, time.Now().Add(time.Duration(i)*time.Second)))
		s.Require().NoError(err)
	}

	snapshot := receiveSnapshot(s, sub)
	s.Len(snapshot, 3, "pending snapshot must be the latest full state")
}

func (s *MemoryStoreSuite) TestCloseIsIdempotent() {
	sub, err := s.store.LiveQuery(s.ctx, domain.UserID(uuid.New()))
	s.Require().NoError(err)

	s.Require().NoError(sub.Close())
	s.Require().NoError(sub.Close())
	s.Nil(sub.Err())
}

func (s *MemoryStoreSuite) TestCloseEndsSnapshotStream() {
	sub, err := s.store.LiveQuery(s.ctx, domain.UserID(uuid.New()))
	s.Require().NoError(err)
	s.Require().NoError(sub.Close())

	// Drain: the buffered initial snapshot may still be pending, then the
	// channel must report closed.
	for {
		select {
		case _, ok := <-sub.Snapshots():
			if !ok {
				return
			}
		case <-time.After(time.Second):
			s.FailNow("snapshot channel did not close")
		}
	}
}

func (s *MemoryStoreSuite) TestClosedSubscriptionReceivesNoFurtherSnapshots() {
	owner := domain.UserID(uuid.New())

	sub, err := s.store.LiveQuery(s.ctx, owner)
	s.Require().NoError(err)
	receiveSnapshot(s, sub)
	s.Require().NoError(sub.Close())

	_, err = s.store.Append(s.ctx, testRecord(owner, 0.4, time.Now()))
	s.Require().NoError(err)

	_, ok := <-sub.Snapshots()
	s.False(ok)
}
