package shortlist_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/shortlist"
	"github.com/trezcool/admissions/tests"
)

const year = 2024

var errBoom = errors.New("boom")

// failingRepo fails InsertSelections.
type failingRepo struct {
	shortlist.Repository
}

func (failingRepo) InsertSelections(context.Context, int64, []int64, ...core.DBExecutor) error {
	return errBoom
}

// countlessRepo fails the counts read after a batch is committed.
type countlessRepo struct {
	shortlist.Repository
}

func (countlessRepo) CountShortlistedByBatch(context.Context, int64, ...core.DBExecutor) (int, error) {
	return 0, errBoom
}

func (countlessRepo) CountShortlistedInBlocks(context.Context, []string, int, ...core.DBExecutor) (int, error) {
	return 0, errBoom
}

// errLogger records the messages logged as errors.
type errLogger struct {
	core.Logger
	errs []string
}

func (l *errLogger) Error(msg string, args ...interface{}) {
	l.errs = append(l.errs, msg)
	l.Logger.Error(msg, args...)
}

func newService(t *testing.T, store *testutil.Store, repo ...shortlist.Repository) *shortlist.Service {
	return newServiceWithLogger(t, store, testutil.NewLogger(t), repo...)
}

func newServiceWithLogger(t *testing.T, store *testutil.Store, logger core.Logger, repo ...shortlist.Repository) *shortlist.Service {
	validate, _ := testutil.NewValidator()
	r := store.Shortlists
	if len(repo) > 0 {
		r = repo[0]
	}
	return shortlist.NewService(store.DB, r, store.Applicants, store.Juris, validate, logger)
}

func seed(t *testing.T) *testutil.Store {
	store := testutil.NewStore(t)
	store.SeedJurisdictions(t)
	for i := 1; i <= 26; i++ {
		store.CreateApplicant(t, year, fmt.Sprintf("AN%09d", i), testutil.BlockAnekal, float64(i), float64(i))
	}
	for i := 1; i <= 3; i++ {
		store.CreateApplicant(t, year, fmt.Sprintf("HK%09d", i), testutil.BlockHoskote, float64(i*20), 40)
	}
	store.CreateApplicant(t, year, "HU000000001", testutil.BlockHunsur, 10, 10)
	store.CreateApplicant(t, year-1, "HK000000099", testutil.BlockHoskote, 90, 90)
	return store
}

func newBatch(name string, criteria int, blocks ...string) shortlist.NewBatch {
	return shortlist.NewBatch{
		CriteriaID: criteria,
		Name:       name,
		Year:       year,
		Locations: shortlist.Locations{
			State:    "Karnataka",
			District: "Bangalore North",
			Blocks:   blocks,
		},
	}
}

func TestService_CreateBatch(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	svc := newService(t, store)

	res, err := svc.CreateBatch(ctx, newBatch("Anekal top 8", 3, "Anekal", " anekal ", "Hoskote"))
	require.NoError(t, err)
	assert.Equal(t, shortlist.Result{
		BatchID:                  1,
		ShortlistedCount:         4,
		TotalApplicants:          30,
		TotalShortlistedInBlocks: 4,
	}, res)

	batch, err := svc.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "Anekal top 8", batch.Name)
	assert.False(t, batch.Frozen)
	assert.Equal(t, []string{testutil.BlockAnekal, testutil.BlockHoskote}, batch.BlockCodes)

	applicants, err := svc.ShortlistedApplicants(ctx, res.BatchID)
	require.NoError(t, err)
	regs := make([]string, 0, len(applicants))
	for _, a := range applicants {
		regs = append(regs, a.RegNumber)
	}
	assert.ElementsMatch(t, []string{"AN000000026", "AN000000025", "AN000000024", "HK000000003"}, regs)
}

func TestService_CreateBatch_countFailure(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	logger := &errLogger{Logger: testutil.NewLogger(t)}
	svc := newServiceWithLogger(t, store, logger, countlessRepo{store.Shortlists})

	res, err := svc.CreateBatch(ctx, newBatch("Anekal top 8", 3, "Anekal", "Hoskote"))
	require.NoError(t, err)
	assert.Equal(t, shortlist.Result{
		BatchID:                  1,
		ShortlistedCount:         4,
		TotalApplicants:          30,
		TotalShortlistedInBlocks: 0,
	}, res)
	assert.Equal(t, []string{"counting batch selections", "counting block selections"}, logger.errs)

	// the batch was committed
	batch, err := svc.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "Anekal top 8", batch.Name)
	n, err := store.Shortlists.CountShortlistedByBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestService_CreateBatch_errors(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	store.DB.AddCriteria(shortlist.Criteria{ID: 9, Label: "Top 5%", ThresholdPct: 5})
	svc := newService(t, store)

	tests := []struct {
		name      string
		nb        shortlist.NewBatch
		wantField string
		wantCause error
	}{
		{name: "unknown state", nb: func() shortlist.NewBatch {
			nb := newBatch("x", 1, "Anekal")
			nb.Locations.State = "Karnatak"
			return nb
		}(), wantField: "state"},
		{name: "district of another state", nb: func() shortlist.NewBatch {
			nb := newBatch("x", 1, "Bardez")
			nb.Locations.District = "North Goa"
			return nb
		}(), wantField: "district"},
		{name: "block of another district", nb: newBatch("x", 1, "Hunsur"), wantField: "block"},
		{name: "unknown criteria", nb: newBatch("x", 42, "Anekal"), wantField: "criteriaId"},
		{name: "unsupported threshold", nb: newBatch("x", 9, "Anekal"), wantCause: shortlist.ErrCriteriaNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBatch(ctx, tt.nb)
			require.Error(t, err)
			if tt.wantField != "" {
				vErr, ok := errors.Cause(err).(*core.ValidationError)
				require.True(t, ok, "want a validation error, got %v", err)
				require.NotEmpty(t, vErr.Fields)
				assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
			}
			if tt.wantCause != nil {
				assert.Equal(t, tt.wantCause, errors.Cause(err))
			}
		})
	}

	batches, err := svc.ListBatches(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestService_CreateBatch_conflict(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	svc := newService(t, store)

	first, err := svc.CreateBatch(ctx, newBatch("Batch A", 1, "Hoskote"))
	require.NoError(t, err)

	before, err := svc.CountShortlistedInBlocks(ctx, []string{testutil.BlockAnekal, testutil.BlockHoskote}, year)
	require.NoError(t, err)

	_, err = svc.CreateBatch(ctx, newBatch("Batch B", 1, "Anekal", "Hoskote"))
	require.Error(t, err)
	var conflict *shortlist.ConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Claims, 1)
	assert.Equal(t, testutil.BlockHoskote, conflict.Claims[0].BlockCode)
	assert.Equal(t, first.BatchID, conflict.Claims[0].BatchID)
	assert.Equal(t, "an active shortlist already exists for blocks: Hoskote (batch 'Batch A' #1)", err.Error())

	after, err := svc.CountShortlistedInBlocks(ctx, []string{testutil.BlockAnekal, testutil.BlockHoskote}, year)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// a frozen batch no longer claims its blocks
	_, err = svc.FreezeBatch(ctx, first.BatchID)
	require.NoError(t, err)
	second, err := svc.CreateBatch(ctx, newBatch("Batch B", 1, "Anekal", "Hoskote"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.BatchID)
}

func TestService_CreateBatch_rollback(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	svc := newService(t, store, failingRepo{store.Shortlists})

	_, err := svc.CreateBatch(ctx, newBatch("Batch A", 1, "Anekal"))
	require.Error(t, err)
	assert.Equal(t, errBoom, errors.Cause(err))

	batches, err := store.Shortlists.ListBatches(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, batches)

	// the blocks are free again
	_, err = newService(t, store).CreateBatch(ctx, newBatch("Batch A", 1, "Anekal"))
	assert.NoError(t, err)
}

func TestService_FreezeAndDeleteBatch(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	svc := newService(t, store)

	res, err := svc.CreateBatch(ctx, newBatch("Batch A", 2, "Anekal"))
	require.NoError(t, err)
	other, err := svc.CreateBatch(ctx, newBatch("Batch B", 2, "Hoskote"))
	require.NoError(t, err)

	batch, err := svc.FreezeBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.True(t, batch.Frozen)

	// freezing twice is a no-op
	batch, err = svc.FreezeBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.True(t, batch.Frozen)

	err = svc.DeleteBatch(ctx, res.BatchID)
	assert.Equal(t, shortlist.ErrBatchFrozen, errors.Cause(err))

	require.NoError(t, svc.DeleteBatch(ctx, other.BatchID))
	_, err = svc.GetBatch(ctx, other.BatchID)
	assert.Equal(t, shortlist.ErrBatchNotFound, errors.Cause(err))
	_, err = svc.ShortlistedApplicants(ctx, other.BatchID)
	assert.Equal(t, shortlist.ErrBatchNotFound, errors.Cause(err))

	_, err = svc.FreezeBatch(ctx, 99)
	assert.Equal(t, shortlist.ErrBatchNotFound, errors.Cause(err))
	err = svc.DeleteBatch(ctx, 99)
	assert.Equal(t, shortlist.ErrBatchNotFound, errors.Cause(err))

	// remaining selections are untouched
	n, err := svc.CountShortlistedByBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_ListBatches(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	svc := newService(t, store)

	_, err := svc.CreateBatch(ctx, newBatch("Batch A", 1, "Anekal"))
	require.NoError(t, err)
	_, err = svc.CreateBatch(ctx, newBatch("Batch B", 1, "Hoskote"))
	require.NoError(t, err)

	batches, err := svc.ListBatches(ctx, year)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "Batch B", batches[0].Name)
	assert.Equal(t, "Batch A", batches[1].Name)

	batches, err = svc.ListBatches(ctx, year-1)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestService_ExportBatchXLSX(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	svc := newService(t, store)

	res, err := svc.CreateBatch(ctx, newBatch("Batch A", 3, "Hoskote", "Anekal"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportBatchXLSX(ctx, res.BatchID, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Shortlist")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Registration Number", rows[0][1])
	assert.Equal(t, []string{"AN000000026", "AN000000025", "AN000000024", "HK000000003"},
		[]string{rows[1][1], rows[2][1], rows[3][1], rows[4][1]})
	assert.Equal(t, "Anekal", rows[1][0])
	assert.Equal(t, "Hoskote", rows[4][0])

	assert.Equal(t, shortlist.ErrBatchNotFound, errors.Cause(svc.ExportBatchXLSX(ctx, 99, &buf)))
}
