//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "riskdash/pkg/domain"
	audit "riskdash/pkg/platform/audit"
	auditpg "riskdash/pkg/platform/audit/store/postgres"
	txcontext "riskdash/pkg/platform/tx"
	"riskdash/pkg/testutil/containers"
)

type PostgresAuditStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *auditpg.Store
}

func TestPostgresAuditStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresAuditStoreSuite))
}

func (s *PostgresAuditStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = auditpg.New(s.pg.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresAuditStoreSuite) TearDownSuite() {
	_ = s.pg.DB.Close()
	_ = s.pg.Container.Terminate(context.Background())
}

func (s *PostgresAuditStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresAuditStoreSuite) mustUserID(raw string) id.UserID {
	uid, err := id.ParseUserID(raw)
	s.Require().NoError(err)
	return uid
}

func (s *PostgresAuditStoreSuite) TestAppendAndListByUser() {
	ctx := context.Background()
	uid := s.mustUserID("11111111-1111-4111-8111-111111111111")
	other := s.mustUserID("22222222-2222-4222-8222-222222222222")

	events := []audit.Event{
		{Category: audit.CategoryCompliance, Timestamp: time.Now().UTC().Add(-time.Minute), UserID: uid, Action: string(audit.EventUserSignedUp), Email: "a@example.com"},
		{Category: audit.CategoryOperations, Timestamp: time.Now().UTC(), UserID: uid, Action: string(audit.EventUserSignedIn), RequestID: "req-1"},
		{Category: audit.CategorySecurity, Timestamp: time.Now().UTC(), UserID: other, Action: string(audit.EventAuthFailed)},
	}
	for _, event := range events {
		s.Require().NoError(s.store.Append(ctx, event))
	}

	got, err := s.store.ListByUser(ctx, uid)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(string(audit.EventUserSignedIn), got[0].Action)
	s.Equal("req-1", got[0].RequestID)
	s.Equal(string(audit.EventUserSignedUp), got[1].Action)
	s.Equal("a@example.com", got[1].Email)
}

func (s *PostgresAuditStoreSuite) TestListRecentHonorsLimit() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Category:  audit.CategoryOperations,
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
			Action:    string(audit.EventPredictionSubmitted),
		}))
	}

	got, err := s.store.ListRecent(ctx, 3)
	s.Require().NoError(err)
	s.Len(got, 3)
}

func (s *PostgresAuditStoreSuite) TestAnonymousEventHasNoUser() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: time.Now().UTC(),
		Action:    string(audit.EventAuthFailed),
		Reason:    "invalid credentials",
	}))

	got, err := s.store.ListRecent(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.True(got[0].UserID.IsNil())
	s.Equal("invalid credentials", got[0].Reason)
}

func (s *PostgresAuditStoreSuite) TestAppendJoinsCallerTransaction() {
	ctx := context.Background()
	uid := s.mustUserID("33333333-3333-4333-8333-333333333333")

	tx, err := s.pg.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	txCtx := txcontext.WithTx(ctx, tx)
	s.Require().NoError(s.store.Append(txCtx, audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: time.Now().UTC(),
		UserID:    uid,
		Action:    string(audit.EventPredictionSubmitted),
	}))
	s.Require().NoError(tx.Rollback())

	got, err := s.store.ListByUser(ctx, uid)
	s.Require().NoError(err)
	s.Empty(got, "rolled back transaction must take the audit event with it")
}
