package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/applicant"
	"github.com/trezcool/admissions/core/jurisdiction"
	"github.com/trezcool/admissions/core/shortlist"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func newApplicant() applicant.NewApplicant {
	return applicant.NewApplicant{
		Applicant: applicant.Applicant{
			Year:         2024,
			RegNumber:    "12345678901",
			Name:         "Asha",
			FatherName:   "Ravi",
			Gender:       applicant.GenderFemale,
			GMATScore:    decimal.NewFromInt(80),
			SATScore:     decimal.NewFromInt(70),
			StateCode:    "KA",
			DistrictCode: "KA-BN",
			BlockCode:    "KA-BN-AN",
		},
	}
}

func TestGetExec(t *testing.T) {
	db, mock := newMock(t)
	repo := repository{db: db}

	ext, err := repo.getExec(nil)
	require.NoError(t, err)
	assert.Equal(t, db, ext)

	mock.ExpectBegin()
	mock.ExpectRollback()
	rawTx, err := db.DB.Begin()
	require.NoError(t, err)
	defer func() { _ = rawTx.Rollback() }()

	_, err = repo.getExec([]core.DBExecutor{rawTx})
	assert.Equal(t, errUnsupportedExec, err)
}

func TestApplicantRepository_CreateApplicant(t *testing.T) {
	ctx := context.Background()

	t.Run("in a transaction", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewApplicantRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("^" + q("SAVEPOINT applicant_insert")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("INSERT INTO applicant_primary_info")).
			WillReturnRows(sqlmock.NewRows([]string{"applicant_id"}).AddRow(7))
		mock.ExpectExec(q("INSERT INTO applicant_secondary_info")).
			WithArgs(int64(7), nil, nil, nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("RELEASE SAVEPOINT applicant_insert")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		tx, err := db.Beginx()
		require.NoError(t, err)
		app, err := repo.CreateApplicant(ctx, newApplicant(), tx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), app.ID)
		assert.False(t, app.CreatedAt.IsZero())
		require.NoError(t, tx.Commit())
	})

	t.Run("duplicate rolls back to the savepoint", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewApplicantRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("^" + q("SAVEPOINT applicant_insert")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("INSERT INTO applicant_primary_info")).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
		mock.ExpectExec(q("ROLLBACK TO SAVEPOINT applicant_insert")).WillReturnResult(sqlmock.NewResult(0, 0))
		// the enclosing transaction is still usable
		mock.ExpectQuery(q("SELECT count(*) FROM applicant_primary_info")).
			WithArgs(2024).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectCommit()

		tx, err := db.Beginx()
		require.NoError(t, err)
		_, err = repo.CreateApplicant(ctx, newApplicant(), tx)
		assert.Equal(t, applicant.ErrDuplicate, err)

		n, err := repo.CountByYear(ctx, 2024, tx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		require.NoError(t, tx.Commit())
	})

	t.Run("own transaction", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewApplicantRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(q("INSERT INTO applicant_primary_info")).
			WillReturnRows(sqlmock.NewRows([]string{"applicant_id"}).AddRow(1))
		mock.ExpectExec(q("INSERT INTO applicant_secondary_info")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		app, err := repo.CreateApplicant(ctx, newApplicant())
		require.NoError(t, err)
		assert.Equal(t, int64(1), app.ID)
	})

	t.Run("own transaction rolled back on error", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewApplicantRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(q("INSERT INTO applicant_primary_info")).
			WillReturnRows(sqlmock.NewRows([]string{"applicant_id"}).AddRow(1))
		mock.ExpectExec(q("INSERT INTO applicant_secondary_info")).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := repo.CreateApplicant(ctx, newApplicant())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inserting secondary info")
	})
}

func TestApplicantRepository_GetApplicant(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewApplicantRepository(db)

	cols := []string{"applicant_id", "nmms_year", "nmms_reg_number", "student_name", "father_name", "mother_name",
		"gender", "aadhaar", "dob", "medium", "contact_no1", "contact_no2", "home_address", "family_income",
		"current_institute", "previous_institute", "gmat_score", "sat_score", "app_state", "district",
		"nmms_block", "created_at", "updated_at"}
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("FROM applicant_primary_info WHERE applicant_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(7, 2024, "12345678901", "Asha", "Ravi", nil, "F", nil, nil,
			"Kannada", nil, nil, nil, 120000, nil, nil, "80.50", "70", "KA", "KA-BN", "KA-BN-AN", now, now))
	mock.ExpectQuery(q("FROM applicant_primary_info WHERE applicant_id = $1")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(cols))

	app, err := repo.GetApplicant(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Asha", app.Name)
	assert.False(t, app.MotherName.Valid)
	assert.Equal(t, "Kannada", app.Medium.String)
	assert.Equal(t, 120000, app.FamilyIncome.Int)
	assert.True(t, app.GMATScore.Equal(decimal.RequireFromString("80.5")))

	_, err = repo.GetApplicant(ctx, 8)
	assert.Equal(t, applicant.ErrNotFound, err)
}

func TestJurisdictionRepository_ResolveChain(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewJurisdictionRepository(db)

	mock.ExpectQuery(q("FROM (SELECT 1) AS input")).
		WithArgs("Karnataka", "Mysore", "Anekal").
		WillReturnRows(sqlmock.NewRows([]string{"state_code", "division_code", "district_code", "block_code"}).
			AddRow("KA", "KA-DV2", "KA-MY", nil))

	chain, err := repo.ResolveChain(ctx, jurisdiction.Names{State: "Karnataka", District: "Mysore", Block: "Anekal"})
	require.NoError(t, err)
	assert.Equal(t, "KA-MY", chain.DistrictCode.String)
	assert.False(t, chain.BlockCode.Valid)

	miss, ok := chain.Missing(jurisdiction.Names{State: "Karnataka", District: "Mysore", Block: "Anekal"})
	assert.True(t, ok)
	assert.Equal(t, jurisdiction.LevelBlock, miss.Level)
}

func TestJurisdictionRepository_LockBlocks(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewJurisdictionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("ORDER BY juris_code FOR NO KEY UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"juris_code"}).AddRow("KA-BN-AN").AddRow("KA-BN-HK"))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.LockBlocks(ctx, []string{"KA-BN-HK", "KA-BN-AN"}, tx))
	// no codes, no query
	require.NoError(t, repo.LockBlocks(ctx, nil, tx))
	require.NoError(t, tx.Rollback())
}

func TestShortlistRepository_FreezeAndDelete(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewShortlistRepository(db)

	mock.ExpectExec(q("UPDATE shortlist_batch SET frozen_yn = 'Y'")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE shortlist_batch SET frozen_yn = 'Y'")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("DELETE FROM shortlist_batch WHERE shortlist_batch_id = $1 AND frozen_yn = 'N'")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.FreezeBatch(ctx, 1))
	assert.Equal(t, shortlist.ErrBatchNotFound, repo.FreezeBatch(ctx, 99))
	assert.Equal(t, shortlist.ErrBatchNotFound, repo.DeleteBatch(ctx, 1))
}

func TestShortlistRepository_GetBatch(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewShortlistRepository(db)

	cols := []string{"shortlist_batch_id", "shortlist_name", "shortlist_description", "criteria_id", "nmms_year", "frozen", "created_at"}
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("FROM shortlist_batch WHERE shortlist_batch_id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, "Batch A", nil, 1, 2024, true, now))
	mock.ExpectQuery(q("FROM shortlist_batch_jurisdiction")).
		WillReturnRows(sqlmock.NewRows([]string{"shortlist_batch_id", "juris_code"}).
			AddRow(3, "KA-BN-AN").AddRow(3, "KA-BN-HK"))
	mock.ExpectQuery(q("FROM shortlist_batch WHERE shortlist_batch_id = $1")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(cols))

	batch, err := repo.GetBatch(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Batch A", batch.Name)
	assert.True(t, batch.Frozen)
	assert.False(t, batch.Description.Valid)
	assert.Equal(t, []string{"KA-BN-AN", "KA-BN-HK"}, batch.BlockCodes)

	_, err = repo.GetBatch(ctx, 4)
	assert.Equal(t, shortlist.ErrBatchNotFound, err)
}

func TestShortlistRepository_ActiveClaims(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewShortlistRepository(db)

	mock.ExpectQuery(q("WHERE b.frozen_yn = 'N' AND bj.juris_code = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"shortlist_batch_id", "shortlist_name", "juris_code", "juris_name"}).
			AddRow(1, "Batch A", "KA-BN-HK", "Hoskote"))

	claims, err := repo.ActiveClaims(ctx, []string{"KA-BN-AN", "KA-BN-HK"})
	require.NoError(t, err)
	assert.Equal(t, []shortlist.BlockClaim{{BatchID: 1, BatchName: "Batch A", BlockCode: "KA-BN-HK", BlockName: "Hoskote"}}, claims)
}

func TestShortlistRepository_InsertSelections(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewShortlistRepository(db)

	mock.ExpectExec(q("FROM unnest($2::bigint[]) AS id")).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.NoError(t, repo.InsertSelections(ctx, 1, []int64{5, 9, 2}))
}
