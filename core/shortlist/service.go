package shortlist

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/applicant"
	"github.com/trezcool/admissions/core/jurisdiction"
)

type (
	Repository interface {
		GetCriteria(ctx context.Context, id int, exec ...core.DBExecutor) (Criteria, error)
		// ActiveClaims returns the blocks among codes that are referenced by an unfrozen batch.
		ActiveClaims(ctx context.Context, codes []string, exec ...core.DBExecutor) ([]BlockClaim, error)
		CreateBatch(ctx context.Context, batch Batch, exec ...core.DBExecutor) (Batch, error)
		LinkBlocks(ctx context.Context, batchID int64, codes []string, exec ...core.DBExecutor) error
		BlockScores(ctx context.Context, scope Scope, exec ...core.DBExecutor) ([]Score, error)
		// InsertSelections stores every applicant as shortlisted in one statement.
		InsertSelections(ctx context.Context, batchID int64, applicantIDs []int64, exec ...core.DBExecutor) error
		CountShortlistedByBatch(ctx context.Context, batchID int64, exec ...core.DBExecutor) (int, error)
		CountShortlistedInBlocks(ctx context.Context, codes []string, year int, exec ...core.DBExecutor) (int, error)
		// ListBatches returns the batches of a year, or all batches when year is 0, newest first.
		ListBatches(ctx context.Context, year int, exec ...core.DBExecutor) ([]Batch, error)
		GetBatch(ctx context.Context, id int64, exec ...core.DBExecutor) (Batch, error)
		FreezeBatch(ctx context.Context, id int64, exec ...core.DBExecutor) error
		// DeleteBatch removes an unfrozen batch with its block links and selections.
		DeleteBatch(ctx context.Context, id int64, exec ...core.DBExecutor) error
		ShortlistedApplicants(ctx context.Context, batchID int64, exec ...core.DBExecutor) ([]ShortlistedApplicant, error)
	}

	Service struct {
		db        core.TxBeginner
		repo      Repository
		appRepo   applicant.Repository
		jurisSvc  *jurisdiction.Service
		jurisRepo jurisdiction.Repository
		validate  *validator.Validate
		logger    core.Logger
	}
)

func NewService(
	db core.TxBeginner,
	repo Repository,
	appRepo applicant.Repository,
	jurisRepo jurisdiction.Repository,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		appRepo:   appRepo,
		jurisSvc:  jurisdiction.NewService(db, jurisRepo),
		jurisRepo: jurisRepo,
		validate:  validate,
		logger:    logger,
	}
}

type block struct {
	name  string
	chain jurisdiction.Chain
}

// resolveBlocks maps the requested block names to their jurisdiction chains, in request order.
func (svc *Service) resolveBlocks(ctx context.Context, loc Locations, tx core.DBExecutor) ([]block, error) {
	blocks := make([]block, 0, len(loc.Blocks))
	var fldErrs []core.FieldError
	for _, name := range loc.Blocks {
		names := jurisdiction.Names{State: loc.State, District: loc.District, Block: name}
		chain, err := svc.jurisSvc.Resolve(ctx, names, tx)
		if err != nil {
			return nil, errors.Wrap(err, "resolving block")
		}
		if miss, ok := chain.Missing(names); ok {
			fldErrs = append(fldErrs, core.FieldError{Field: miss.Level, Error: miss.Message})
			// state and district misses are the same for every block
			if miss.Level != jurisdiction.LevelBlock {
				break
			}
			continue
		}
		blocks = append(blocks, block{name: name, chain: chain})
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	return blocks, nil
}

func blockCodes(blocks []block) []string {
	codes := make([]string, 0, len(blocks))
	seen := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		if code := b.chain.BlockCode.String; !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// CreateBatch ranks the applicants of every requested block and stores the top ones as a new batch.
// At most one unfrozen batch may reference a block: the block rows are locked before the check
// so that overlapping requests are serialized.
func (svc *Service) CreateBatch(ctx context.Context, nb NewBatch) (Result, error) {
	if err := nb.Validate(svc.validate); err != nil {
		return Result{}, err
	}

	tx, err := svc.db.Begin(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "beginning transaction")
	}
	defer core.RollbackUnlessCommitted(tx)

	blocks, err := svc.resolveBlocks(ctx, nb.Locations, tx)
	if err != nil {
		return Result{}, err
	}
	codes := blockCodes(blocks)

	if err = svc.jurisRepo.LockBlocks(ctx, codes, tx); err != nil {
		return Result{}, errors.Wrap(err, "locking blocks")
	}
	claims, err := svc.repo.ActiveClaims(ctx, codes, tx)
	if err != nil {
		return Result{}, errors.Wrap(err, "checking active shortlists")
	}
	if len(claims) > 0 {
		return Result{}, &ConflictError{Claims: claims}
	}

	criteria, err := svc.repo.GetCriteria(ctx, nb.CriteriaID, tx)
	if err != nil {
		if errors.Cause(err) == ErrCriteriaNotFound {
			return Result{}, core.NewValidationError(nil, core.FieldError{Field: "criteriaId", Error: err.Error()})
		}
		return Result{}, errors.Wrap(err, "getting criteria")
	}
	threshold, err := criteria.Threshold()
	if err != nil {
		return Result{}, err
	}

	batch, err := svc.repo.CreateBatch(ctx, Batch{
		Name:        nb.Name,
		Description: null.NewString(nb.Description, nb.Description != ""),
		CriteriaID:  criteria.ID,
		Year:        nb.Year,
		CreatedAt:   core.NowFunc().UTC(),
		BlockCodes:  codes,
	}, tx)
	if err != nil {
		return Result{}, errors.Wrap(err, "creating batch")
	}
	if err = svc.repo.LinkBlocks(ctx, batch.ID, codes, tx); err != nil {
		return Result{}, errors.Wrap(err, "linking blocks")
	}

	var selected []int64
	ranked := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		if ranked[b.chain.BlockCode.String] {
			continue
		}
		ranked[b.chain.BlockCode.String] = true

		scores, err := svc.repo.BlockScores(ctx, Scope{
			Year:         nb.Year,
			StateCode:    b.chain.StateCode.String,
			DistrictCode: b.chain.DistrictCode.String,
			BlockCode:    b.chain.BlockCode.String,
		}, tx)
		if err != nil {
			return Result{}, errors.Wrapf(err, "getting scores of block %s", b.name)
		}
		selected = append(selected, Select(PercentRank(scores), threshold)...)
	}

	if len(selected) > 0 {
		if err = svc.repo.InsertSelections(ctx, batch.ID, selected, tx); err != nil {
			return Result{}, errors.Wrap(err, "inserting selections")
		}
	}
	if err = tx.Commit(); err != nil {
		return Result{}, errors.Wrap(err, "committing transaction")
	}

	// the batch is stored: a failing count is logged, never returned
	res := Result{BatchID: batch.ID, ShortlistedCount: len(selected)}
	if n, err := svc.repo.CountShortlistedByBatch(ctx, batch.ID); err != nil {
		svc.logCountErr("counting batch selections", batch.ID, err)
	} else {
		res.ShortlistedCount = n
	}
	if n, err := svc.appRepo.CountByYear(ctx, nb.Year); err != nil {
		svc.logCountErr("counting applicants", batch.ID, err)
	} else {
		res.TotalApplicants = n
	}
	if n, err := svc.repo.CountShortlistedInBlocks(ctx, codes, nb.Year); err != nil {
		svc.logCountErr("counting block selections", batch.ID, err)
	} else {
		res.TotalShortlistedInBlocks = n
	}
	return res, nil
}

func (svc *Service) logCountErr(msg string, batchID int64, err error) {
	svc.logger.Error(msg, err, map[string]interface{}{"batch": batchID})
}

func (svc *Service) CountApplicantsByYear(ctx context.Context, year int) (int, error) {
	return svc.appRepo.CountByYear(ctx, year)
}

func (svc *Service) CountShortlistedByBatch(ctx context.Context, batchID int64) (int, error) {
	return svc.repo.CountShortlistedByBatch(ctx, batchID)
}

func (svc *Service) CountShortlistedInBlocks(ctx context.Context, codes []string, year int) (int, error) {
	return svc.repo.CountShortlistedInBlocks(ctx, codes, year)
}

func (svc *Service) ListBatches(ctx context.Context, year int) ([]Batch, error) {
	return svc.repo.ListBatches(ctx, year)
}

func (svc *Service) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return svc.repo.GetBatch(ctx, id)
}

// FreezeBatch makes a batch immutable. Freezing a frozen batch is a no-op.
func (svc *Service) FreezeBatch(ctx context.Context, id int64) (Batch, error) {
	if err := svc.repo.FreezeBatch(ctx, id); err != nil {
		return Batch{}, err
	}
	return svc.repo.GetBatch(ctx, id)
}

func (svc *Service) DeleteBatch(ctx context.Context, id int64) error {
	tx, err := svc.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer core.RollbackUnlessCommitted(tx)

	batch, err := svc.repo.GetBatch(ctx, id, tx)
	if err != nil {
		return err
	}
	if batch.Frozen {
		return ErrBatchFrozen
	}
	if err = svc.repo.DeleteBatch(ctx, id, tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (svc *Service) ShortlistedApplicants(ctx context.Context, batchID int64) ([]ShortlistedApplicant, error) {
	if _, err := svc.repo.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return svc.repo.ShortlistedApplicants(ctx, batchID)
}
