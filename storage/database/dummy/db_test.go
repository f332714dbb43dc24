package dummydb

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core/applicant"
	"github.com/trezcool/admissions/core/shortlist"
)

func TestDB_transactions(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	apps := NewApplicantRepository(db)
	batches := NewShortlistRepository(db)

	na := applicant.NewApplicant{Applicant: applicant.Applicant{Year: 2024, RegNumber: "12345678901"}}

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = apps.CreateApplicant(ctx, na, tx)
	require.NoError(t, err)
	_, err = batches.CreateBatch(ctx, shortlist.Batch{Name: "Batch A", Year: 2024}, tx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.Equal(t, sql.ErrTxDone, tx.Rollback())
	assert.Equal(t, sql.ErrTxDone, tx.Commit())

	n, err := apps.CountByYear(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	list, err := batches.ListBatches(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	tx, err = db.Begin(ctx)
	require.NoError(t, err)
	app, err := apps.CreateApplicant(ctx, na, tx)
	require.NoError(t, err)
	// the rollback restored the id sequence too
	assert.Equal(t, int64(1), app.ID)
	require.NoError(t, tx.Commit())

	_, err = apps.CreateApplicant(ctx, na)
	assert.Equal(t, applicant.ErrDuplicate, err)
	n, err = apps.CountByYear(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestShortlistRepository_DeleteBatch(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	repo := NewShortlistRepository(db)

	batch, err := repo.CreateBatch(ctx, shortlist.Batch{Name: "Batch A", Year: 2024})
	require.NoError(t, err)
	require.NoError(t, repo.LinkBlocks(ctx, batch.ID, []string{"KA-BN-HK", "KA-BN-AN"}))
	require.NoError(t, repo.InsertSelections(ctx, batch.ID, []int64{3, 1}))

	got, err := repo.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"KA-BN-AN", "KA-BN-HK"}, got.BlockCodes)

	require.NoError(t, repo.FreezeBatch(ctx, batch.ID))
	assert.Equal(t, shortlist.ErrBatchNotFound, repo.DeleteBatch(ctx, batch.ID))

	claims, err := repo.ActiveClaims(ctx, []string{"KA-BN-AN"})
	require.NoError(t, err)
	assert.Empty(t, claims)
}
