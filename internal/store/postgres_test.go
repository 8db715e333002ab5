package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-harvester/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_CreateCompany(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery("INSERT INTO companies").
		WithArgs("Acme Robotics", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	c := &model.Company{Name: "Acme Robotics"}
	require.NoError(t, st.CreateCompany(context.Background(), c))
	assert.Equal(t, int64(7), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetCompany_Missing(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT id, name, country, domain, first_seen, last_seen FROM companies").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	c, err := st.GetCompany(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_TouchCompany(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE companies SET").
		WithArgs(int64(1), "2023-05-01", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.TouchCompany(context.Background(), 1, "2023-05-01", nil, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_TouchCompany_Missing(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE companies SET").
		WithArgs(int64(42), "2023-05-01", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.TouchCompany(context.Background(), 42, "2023-05-01", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindCompanyByIdentifier(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"id", "name", "country", "domain", "first_seen", "last_seen"}).
		AddRow(int64(3), "Acme Robotics", nil, nil, nil, nil)
	mock.ExpectQuery("JOIN company_identifiers").
		WithArgs(model.IdentifierUEI, "ABC123").
		WillReturnRows(rows)

	c, err := st.FindCompanyByIdentifier(context.Background(), model.IdentifierUEI, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(3), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MergeCompanies_CommitsOnSuccess(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE funding_events SET company_id").
		WithArgs(int64(1), []int64{2, 3}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))
	mock.ExpectExec("UPDATE company_identifiers SET company_id").
		WithArgs(int64(1), []int64{2, 3}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec("UPDATE companies SET").
		WithArgs(int64(1), []int64{1, 2, 3}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM companies").
		WithArgs([]int64{2, 3}).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	err := st.MergeCompanies(context.Background(), 1, []int64{2, 3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MergeCompanies_DeleteMismatchRollsBack(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE funding_events SET company_id").
		WithArgs(int64(1), []int64{2, 424242}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE company_identifiers SET company_id").
		WithArgs(int64(1), []int64{2, 424242}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("UPDATE companies SET").
		WithArgs(int64(1), []int64{1, 2, 424242}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM companies").
		WithArgs([]int64{2, 424242}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectRollback()

	err := st.MergeCompanies(context.Background(), 1, []int64{2, 424242})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected to delete 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MergeCompanies_RepointFailureRollsBack(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE funding_events SET company_id").
		WithArgs(int64(1), []int64{2}).
		WillReturnError(fmt.Errorf("deadlock detected"))
	mock.ExpectRollback()

	err := st.MergeCompanies(context.Background(), 1, []int64{2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "re-point funding events")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteIngestRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE ingest_runs SET").
		WithArgs(string(model.RunStatusSuccess), 100, 97, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.CompleteIngestRun(context.Background(), 5, 100, 97))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FailIngestRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE ingest_runs SET").
		WithArgs(string(model.RunStatusFailed), 0, 0, "fetch: status 503", int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.FailIngestRun(context.Background(), 9, 0, 0, "fetch: status 503"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordRawPayloads(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"raw_ingest"}, []string{"source", "payload", "ingested_at"}).
		WillReturnResult(2)

	err := st.RecordRawPayloads(context.Background(), "usaspending", [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
