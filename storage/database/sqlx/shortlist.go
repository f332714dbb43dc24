package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/shortlist"
)

const batchColumns = `shortlist_batch_id, shortlist_name, shortlist_description, criteria_id, nmms_year,
	frozen_yn = 'Y' AS frozen, created_at`

type batchBlock struct {
	BatchID int64  `db:"shortlist_batch_id"`
	Code    string `db:"juris_code"`
}

type shortlistRepository struct {
	repository
}

var _ shortlist.Repository = (*shortlistRepository)(nil) // interface compliance check

func NewShortlistRepository(db *sqlx.DB) *shortlistRepository {
	return &shortlistRepository{repository{db: db}}
}

func (repo shortlistRepository) GetCriteria(ctx context.Context, id int, exec ...core.DBExecutor) (shortlist.Criteria, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return shortlist.Criteria{}, err
	}
	var c shortlist.Criteria
	q := `SELECT criteria_id, criteria_label, threshold_pct FROM shortlist_criteria WHERE criteria_id = $1`
	if err = sqlx.GetContext(ctx, ext, &c, q, id); err != nil {
		return shortlist.Criteria{}, trapNoRowsErr(err, shortlist.ErrCriteriaNotFound, "selecting criteria")
	}
	return c, nil
}

func (repo shortlistRepository) ActiveClaims(ctx context.Context, codes []string, exec ...core.DBExecutor) ([]shortlist.BlockClaim, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}
	var claims []shortlist.BlockClaim
	q := `
SELECT b.shortlist_batch_id, b.shortlist_name, j.juris_code, j.juris_name
FROM shortlist_batch b
	JOIN shortlist_batch_jurisdiction bj ON bj.shortlist_batch_id = b.shortlist_batch_id
	JOIN jurisdiction j ON j.juris_code = bj.juris_code
WHERE b.frozen_yn = 'N' AND bj.juris_code = ANY($1)
ORDER BY j.juris_name, b.shortlist_batch_id`
	if err = sqlx.SelectContext(ctx, ext, &claims, q, pq.Array(codes)); err != nil {
		return nil, errors.Wrap(err, "selecting active claims")
	}
	return claims, nil
}

func (repo shortlistRepository) CreateBatch(ctx context.Context, batch shortlist.Batch, exec ...core.DBExecutor) (shortlist.Batch, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return shortlist.Batch{}, err
	}
	q := `
INSERT INTO shortlist_batch (shortlist_name, shortlist_description, criteria_id, nmms_year, frozen_yn, created_at)
VALUES ($1, $2, $3, $4, 'N', $5)
RETURNING shortlist_batch_id`
	err = ext.QueryRowxContext(ctx, q, batch.Name, batch.Description, batch.CriteriaID, batch.Year, batch.CreatedAt).
		Scan(&batch.ID)
	if err != nil {
		return shortlist.Batch{}, errors.Wrap(err, "inserting batch")
	}
	batch.Frozen = false
	return batch, nil
}

func (repo shortlistRepository) LinkBlocks(ctx context.Context, batchID int64, codes []string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	q := `
INSERT INTO shortlist_batch_jurisdiction (shortlist_batch_id, juris_code)
SELECT $1, code FROM unnest($2::varchar[]) AS code`
	if _, err = ext.ExecContext(ctx, q, batchID, pq.Array(codes)); err != nil {
		return errors.Wrap(err, "linking blocks")
	}
	return nil
}

func (repo shortlistRepository) BlockScores(ctx context.Context, scope shortlist.Scope, exec ...core.DBExecutor) ([]shortlist.Score, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}
	var scores []shortlist.Score
	q := `
SELECT applicant_id, gmat_score, sat_score
FROM applicant_primary_info
WHERE nmms_year = $1 AND app_state = $2 AND district = $3 AND nmms_block = $4
ORDER BY applicant_id`
	err = sqlx.SelectContext(ctx, ext, &scores, q, scope.Year, scope.StateCode, scope.DistrictCode, scope.BlockCode)
	if err != nil {
		return nil, errors.Wrap(err, "selecting block scores")
	}
	return scores, nil
}

func (repo shortlistRepository) InsertSelections(ctx context.Context, batchID int64, applicantIDs []int64, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	q := `
INSERT INTO shortlist_info (applicant_id, shortlist_batch_id, shortlisted_yn)
SELECT id, $1, 'Y' FROM unnest($2::bigint[]) AS id`
	if _, err = ext.ExecContext(ctx, q, batchID, pq.Array(applicantIDs)); err != nil {
		return errors.Wrap(err, "inserting selections")
	}
	return nil
}

func (repo shortlistRepository) CountShortlistedByBatch(ctx context.Context, batchID int64, exec ...core.DBExecutor) (int, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return 0, err
	}
	var n int
	q := `SELECT count(*) FROM shortlist_info WHERE shortlist_batch_id = $1 AND shortlisted_yn = 'Y'`
	if err = sqlx.GetContext(ctx, ext, &n, q, batchID); err != nil {
		return 0, errors.Wrap(err, "counting batch selections")
	}
	return n, nil
}

func (repo shortlistRepository) CountShortlistedInBlocks(ctx context.Context, codes []string, year int, exec ...core.DBExecutor) (int, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return 0, err
	}
	var n int
	q := `
SELECT count(DISTINCT si.applicant_id)
FROM shortlist_info si
	JOIN applicant_primary_info a ON a.applicant_id = si.applicant_id
WHERE si.shortlisted_yn = 'Y' AND a.nmms_year = $1 AND a.nmms_block = ANY($2)`
	if err = sqlx.GetContext(ctx, ext, &n, q, year, pq.Array(codes)); err != nil {
		return 0, errors.Wrap(err, "counting block selections")
	}
	return n, nil
}

func (repo shortlistRepository) ListBatches(ctx context.Context, year int, exec ...core.DBExecutor) ([]shortlist.Batch, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}
	var batches []shortlist.Batch
	q := `
SELECT ` + batchColumns + `
FROM shortlist_batch
WHERE $1 = 0 OR nmms_year = $1
ORDER BY created_at DESC, shortlist_batch_id DESC`
	if err = sqlx.SelectContext(ctx, ext, &batches, q, year); err != nil {
		return nil, errors.Wrap(err, "selecting batches")
	}
	if err = repo.attachBlocks(ctx, ext, batches); err != nil {
		return nil, err
	}
	return batches, nil
}

func (repo shortlistRepository) GetBatch(ctx context.Context, id int64, exec ...core.DBExecutor) (shortlist.Batch, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return shortlist.Batch{}, err
	}
	var batch shortlist.Batch
	q := `SELECT ` + batchColumns + ` FROM shortlist_batch WHERE shortlist_batch_id = $1`
	if err = sqlx.GetContext(ctx, ext, &batch, q, id); err != nil {
		return shortlist.Batch{}, trapNoRowsErr(err, shortlist.ErrBatchNotFound, "selecting batch")
	}
	batches := []shortlist.Batch{batch}
	if err = repo.attachBlocks(ctx, ext, batches); err != nil {
		return shortlist.Batch{}, err
	}
	return batches[0], nil
}

// attachBlocks fills the block codes of the batches in one query.
func (repo shortlistRepository) attachBlocks(ctx context.Context, ext sqlx.ExtContext, batches []shortlist.Batch) error {
	if len(batches) == 0 {
		return nil
	}
	ids := make([]int64, len(batches))
	idx := make(map[int64]int, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
		idx[b.ID] = i
		batches[i].BlockCodes = []string{}
	}

	var links []batchBlock
	q := `
SELECT shortlist_batch_id, juris_code FROM shortlist_batch_jurisdiction
WHERE shortlist_batch_id = ANY($1)
ORDER BY shortlist_batch_id, juris_code`
	if err := sqlx.SelectContext(ctx, ext, &links, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "selecting batch blocks")
	}
	for _, l := range links {
		i := idx[l.BatchID]
		batches[i].BlockCodes = append(batches[i].BlockCodes, l.Code)
	}
	return nil
}

func (repo shortlistRepository) FreezeBatch(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	res, err := ext.ExecContext(ctx, `UPDATE shortlist_batch SET frozen_yn = 'Y' WHERE shortlist_batch_id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "freezing batch")
	}
	return checkAffected(res, shortlist.ErrBatchNotFound, "freezing batch")
}

// DeleteBatch relies on cascading foreign keys to remove block links and selections.
func (repo shortlistRepository) DeleteBatch(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	res, err := ext.ExecContext(ctx, `DELETE FROM shortlist_batch WHERE shortlist_batch_id = $1 AND frozen_yn = 'N'`, id)
	if err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	return checkAffected(res, shortlist.ErrBatchNotFound, "deleting batch")
}

func (repo shortlistRepository) ShortlistedApplicants(ctx context.Context, batchID int64, exec ...core.DBExecutor) ([]shortlist.ShortlistedApplicant, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}
	var apps []shortlist.ShortlistedApplicant
	q := `
SELECT a.applicant_id, a.nmms_reg_number, a.student_name, a.father_name, a.gender, a.gmat_score, a.sat_score,
	a.nmms_block, j.juris_name AS block_name
FROM shortlist_info si
	JOIN applicant_primary_info a ON a.applicant_id = si.applicant_id
	JOIN jurisdiction j ON j.juris_code = a.nmms_block
WHERE si.shortlist_batch_id = $1 AND si.shortlisted_yn = 'Y'
ORDER BY j.juris_name, a.applicant_id`
	if err = sqlx.SelectContext(ctx, ext, &apps, q, batchID); err != nil {
		return nil, errors.Wrap(err, "selecting shortlisted applicants")
	}
	return apps, nil
}
