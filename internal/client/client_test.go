package client

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"riskdash/internal/identity"
	identitymocks "riskdash/internal/identity/mocks"
	predictionmocks "riskdash/internal/prediction/mocks"
	"riskdash/internal/scoring"
	"riskdash/internal/session"
	"riskdash/internal/store/record"
	"riskdash/pkg/domain"
)

type ClientSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	provider *identitymocks.MockProvider
	scorer   *predictionmocks.MockScorer
	store    *record.MemoryStore
	changes  chan identity.Change
	client   *Client
	cancel   context.CancelFunc
	runDone  chan struct{}
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.provider = identitymocks.NewMockProvider(s.ctrl)
	s.scorer = predictionmocks.NewMockScorer(s.ctrl)
	s.store = record.NewMemoryStore()

	s.changes = make(chan identity.Change, 8)
	s.provider.EXPECT().Changes().Return((<-chan identity.Change)(s.changes)).AnyTimes()

	s.client = New(s.provider, s.scorer, s.store)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.runDone = make(chan struct{})
	go func() {
		defer close(s.runDone)
		_ = s.client.Run(ctx)
	}()
}

func (s *ClientSuite) TearDownTest() {
	s.cancel()
	select {
	case <-s.runDone:
	case <-time.After(time.Second):
		s.FailNow("client run loops did not stop")
	}
}

func (s *ClientSuite) signIn(owner domain.UserID) {
	ident := identity.Identity{UserID: owner, Email: "dana@example.com"}
	s.changes <- identity.Change{Identity: &ident}
	s.awaitSession(session.StatusAuthenticated)
}

func (s *ClientSuite) awaitSession(status session.Status) {
	s.Require().Eventually(func() bool {
		return s.client.Sessions.Current().Status == status
	}, time.Second, 5*time.Millisecond)
}

func (s *ClientSuite) awaitHistory(count int) []record.Record {
	var records []record.Record
	s.Require().Eventually(func() bool {
		records = s.client.History.State().Records
		return len(records) == count
	}, time.Second, 5*time.Millisecond)
	return records
}

func (s *ClientSuite) TestSubmitFlowsIntoHistory() {
	owner := domain.UserID(uuid.New())
	s.signIn(owner)

	s.scorer.EXPECT().Predict(gomock.Any(), gomock.Any()).
		Return(scoring.Result{DefaultProbability: 0.42, Explanation: map[string]float64{"int_rate": 0.3}}, nil)

	s.Require().NoError(s.client.Submit(context.Background(), scoring.DefaultForm()))

	state := s.client.Predictions.State()
	s.Require().NotNil(state.Result)
	s.InDelta(0.42, state.Result.DefaultProbability, 1e-9)

	records := s.awaitHistory(1)
	s.Equal(owner, records[0].OwnerID)
	s.InDelta(0.42, records[0].DefaultProbability, 1e-9)
}

func (s *ClientSuite) TestIdentitySwitchIsolatesResultAndHistory() {
	ownerA := domain.UserID(uuid.New())
	ownerB := domain.UserID(uuid.New())
	s.signIn(ownerA)

	s.scorer.EXPECT().Predict(gomock.Any(), gomock.Any()).
		Return(scoring.Result{DefaultProbability: 0.9}, nil)
	s.Require().NoError(s.client.Submit(context.Background(), scoring.DefaultForm()))
	s.awaitHistory(1)

	s.signIn(ownerB)

	// The previous user's result and records must not leak across.
	s.Require().Eventually(func() bool {
		return s.client.Predictions.State().Result == nil
	}, time.Second, 5*time.Millisecond)
	s.awaitHistory(0)
}

func (s *ClientSuite) TestSignOutClearsEverything() {
	owner := domain.UserID(uuid.New())
	s.signIn(owner)

	s.scorer.EXPECT().Predict(gomock.Any(), gomock.Any()).
		Return(scoring.Result{DefaultProbability: 0.5}, nil)
	s.Require().NoError(s.client.Submit(context.Background(), scoring.DefaultForm()))
	s.awaitHistory(1)

	s.changes <- identity.Change{}
	s.awaitSession(session.StatusAnonymous)

	s.awaitHistory(0)
	s.Require().Eventually(func() bool {
		return s.client.Predictions.State().Result == nil
	}, time.Second, 5*time.Millisecond)
}

func (s *ClientSuite) TestAnonymousSubmitLeavesNoTrace() {
	s.changes <- identity.Change{}
	s.awaitSession(session.StatusAnonymous)

	s.scorer.EXPECT().Predict(gomock.Any(), gomock.Any()).
		Return(scoring.Result{DefaultProbability: 0.2}, nil)
	s.Require().NoError(s.client.Submit(context.Background(), scoring.DefaultForm()))

	s.Require().NotNil(s.client.Predictions.State().Result)

	// Sign in afterwards: the anonymous submission never reached the store.
	owner := domain.UserID(uuid.New())
	s.signIn(owner)
	time.Sleep(50 * time.Millisecond)
	s.Empty(s.client.History.State().Records)
}
