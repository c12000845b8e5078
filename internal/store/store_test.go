package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/grantscout/internal/grants"
	"github.com/xkilldash9x/grantscout/internal/tasks"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s, mockPool
}

func TestNew_PingFails(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = New(context.Background(), mockPool, zap.NewNop())
	require.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectExec(flexibleSQLMatcher(schemaSQL)).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecordTask(t *testing.T) {
	created := time.Date(2026, 3, 1, 11, 0, 0, 0, time.FixedZone("PST", -8*3600))
	finished := created.Add(time.Minute)

	t.Run("pending task stores null timestamps", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectExec(flexibleSQLMatcher(upsertRunSQL)).
			WithArgs("run-1", "find grants", "pending", "", created.UTC(), (*time.Time)(nil), (*time.Time)(nil)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := s.RecordTask(context.Background(), tasks.Task{
			ID: "run-1", Prompt: "find grants", Status: tasks.StatusPending, CreatedAt: created,
		})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("failed task", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		finishedUTC := finished.UTC()
		mockPool.ExpectExec(flexibleSQLMatcher(upsertRunSQL)).
			WithArgs("run-2", "p", "failed", "no result", created.UTC(), &finishedUTC, &finishedUTC).
			WillReturnError(errors.New("connection reset"))

		err := s.RecordTask(context.Background(), tasks.Task{
			ID: "run-2", Prompt: "p", Status: tasks.StatusFailed, Error: "no result",
			CreatedAt: created, StartedAt: finished, FinishedAt: finished,
		})
		assert.ErrorContains(t, err, "failed to record task run-2")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveBatch(t *testing.T) {
	ctx := context.Background()
	batch := grants.Batch{Grants: []grants.Record{
		{ID: 1, URL: "http://a", Funding: "$5000", Deadline: "2026-03-12"},
		{ID: 2, URL: "http://b", Funding: "$10", Deadline: "2026-04-01"},
	}}

	t.Run("replaces rows in one transaction", func(t *testing.T) {
		observedCore, logs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newMockStore(t, zap.New(observedCore))

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`DELETE FROM grants WHERE run_id = \$1;`).WithArgs("run-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mockPool.ExpectCopyFrom(pgx.Identifier{"grants"}, grantColumns).WillReturnResult(2)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveBatch(ctx, "run-1", batch))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Zero(t, logs.Len(), "rollback after commit must not log")
	})

	t.Run("empty batch skips copy", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectBegin()
		mockPool.ExpectExec(`DELETE FROM grants`).WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveBatch(ctx, "run-1", grants.Batch{}))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("copy count mismatch rolls back", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectBegin()
		mockPool.ExpectExec(`DELETE FROM grants`).WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectCopyFrom(pgx.Identifier{"grants"}, grantColumns).WillReturnResult(1)
		mockPool.ExpectRollback()

		err := s.SaveBatch(ctx, "run-1", batch)
		assert.ErrorContains(t, err, "mismatch in copied grants count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("copy failure rolls back", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		copyErr := errors.New("disk full")
		mockPool.ExpectBegin()
		mockPool.ExpectExec(`DELETE FROM grants`).WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectCopyFrom(pgx.Identifier{"grants"}, grantColumns).WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.SaveBatch(ctx, "run-1", batch)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := s.SaveBatch(ctx, "run-1", batch)
		assert.ErrorContains(t, err, "failed to begin transaction")
	})
}

func TestListGrants(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	rows := pgxmock.NewRows([]string{"grant_id", "url", "funding", "deadline"}).
		AddRow(1, "http://a", "$5000", "2026-03-12").
		AddRow(2, "http://b", "$10", "2026-04-01")
	mockPool.ExpectQuery(`SELECT grant_id, url, funding, deadline\s+FROM grants`).WithArgs("run-1").WillReturnRows(rows)

	got, err := s.ListGrants(context.Background(), "run-1")
	require.NoError(t, err)
	want := grants.Batch{Grants: []grants.Record{
		{ID: 1, URL: "http://a", Funding: "$5000", Deadline: "2026-03-12"},
		{ID: 2, URL: "http://b", Funding: "$10", Deadline: "2026-04-01"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListGrants() mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestListGrants_QueryError(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectQuery(`SELECT grant_id`).WithArgs("run-9").WillReturnError(errors.New("relation does not exist"))

	_, err := s.ListGrants(context.Background(), "run-9")
	assert.ErrorContains(t, err, "failed to query grants")
}
