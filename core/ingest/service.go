package ingest

import (
	"context"
	"fmt"
	"os"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/applicant"
	"github.com/trezcool/admissions/core/jurisdiction"
)

// jurisdiction level -> upload column
var levelFields = map[string]string{
	jurisdiction.LevelState:    "app_state",
	jurisdiction.LevelDistrict: "district",
	jurisdiction.LevelBlock:    "nmms_block",
}

type (
	// RowError is one validation problem of an upload row. Rows are numbered from 1.
	RowError struct {
		Row     int    `json:"row"`
		Field   string `json:"field"`
		Value   string `json:"value"`
		Message string `json:"message"`
	}

	DuplicateRecord struct {
		Row       int    `json:"row"`
		RegNumber string `json:"nmms_reg_number"`
		Year      int    `json:"nmms_year"`
		Message   string `json:"message"`
	}

	Result struct {
		RunID             string            `json:"runId"`
		Message           string            `json:"message"`
		TotalRecords      int               `json:"totalRecords"`
		SuccessfulInserts int               `json:"successfulInserts"`
		ValidationErrors  []RowError        `json:"validationErrors"`
		DuplicateRecords  []DuplicateRecord `json:"duplicateRecords"`
		LogFile           string            `json:"logFile"`
		Failed            bool              `json:"failed"`
		FailureReason     string            `json:"failureReason,omitempty"`
	}

	Service struct {
		db         core.TxBeginner
		appRepo    applicant.Repository
		jurisSvc   *jurisdiction.Service
		validate   *validator.Validate
		translator ut.Translator
		logDir     string
		logger     core.Logger
	}

	candidate struct {
		row int
		rec Record
		app applicant.NewApplicant
	}
)

// InvalidRows counts the distinct rows with validation errors.
func (r Result) InvalidRows() int {
	rows := make(map[int]bool, len(r.ValidationErrors))
	for _, e := range r.ValidationErrors {
		rows[e.Row] = true
	}
	return len(rows)
}

func NewService(
	db core.TxBeginner,
	appRepo applicant.Repository,
	jurisRepo jurisdiction.Repository,
	validate *validator.Validate,
	translator ut.Translator,
	logDir string,
	logger core.Logger,
) *Service {
	return &Service{
		db:         db,
		appRepo:    appRepo,
		jurisSvc:   jurisdiction.NewService(db, jurisRepo),
		validate:   validate,
		translator: translator,
		logDir:     logDir,
		logger:     logger,
	}
}

// UploadFile processes an uploaded temp file. The file is removed whatever the outcome.
func (svc *Service) UploadFile(ctx context.Context, tmpPath, originalName string) (Result, error) {
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			svc.logger.Warn(fmt.Sprintf("removing upload %s", tmpPath), err)
		}
	}()

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return Result{}, errors.Wrap(err, "reading upload")
	}
	return svc.Process(ctx, data, originalName)
}

// Process parses, validates, resolves and stores the rows of an upload, then writes its log.
// Invalid and duplicate rows are reported in the Result. Any other storage error rolls back every
// insert of the run and is returned along with the Result.
func (svc *Service) Process(ctx context.Context, data []byte, originalName string) (Result, error) {
	rows, err := Parse(data, originalName)
	if err != nil {
		return Result{}, err
	}

	startedAt := core.NowFunc()
	res := Result{
		RunID:            uuid.New().String()[:8],
		TotalRecords:     len(rows),
		ValidationErrors: []RowError{},
		DuplicateRecords: []DuplicateRecord{},
	}

	candidates, err := svc.validateRows(rows, &res)
	if err != nil {
		return Result{}, err
	}
	if candidates, err = svc.resolveRows(ctx, candidates, &res); err != nil {
		return Result{}, err
	}

	insertErr := svc.insertRows(ctx, candidates, &res)
	if insertErr != nil {
		res.Failed = true
		res.SuccessfulInserts = 0
		res.FailureReason = insertErr.Error()
		res.Message = "File processing failed, no records were saved"
	} else {
		res.Message = "File processed successfully"
	}

	name := logFileName(startedAt, res.RunID)
	if err = writeLog(svc.logDir, name, renderLog(res, originalName, startedAt)); err != nil {
		svc.logger.Error("writing upload log", err)
	} else {
		res.LogFile = name
	}
	return res, insertErr
}

func (svc *Service) validateRows(rows []Row, res *Result) ([]candidate, error) {
	candidates := make([]candidate, 0, len(rows))
	for i, row := range rows {
		rec := NewRecord(row)
		rec.Clean()
		if err := svc.validate.Struct(rec); err != nil {
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				return nil, errors.Wrap(err, "validating row")
			}
			for _, fe := range vErrs {
				res.ValidationErrors = append(res.ValidationErrors, RowError{
					Row:     i + 1,
					Field:   fe.Field(),
					Value:   fmt.Sprint(fe.Value()),
					Message: fe.Translate(svc.translator),
				})
			}
			continue
		}
		candidates = append(candidates, candidate{row: i + 1, rec: rec, app: rec.Sanitize()})
	}
	return candidates, nil
}

// resolveRows looks up the jurisdiction codes of each candidate, once per distinct name triple.
func (svc *Service) resolveRows(ctx context.Context, candidates []candidate, res *Result) ([]candidate, error) {
	chains := make(map[string]jurisdiction.Chain)
	resolved := candidates[:0]
	for _, c := range candidates {
		names := jurisdiction.Names{State: c.rec.State, District: c.rec.District, Block: c.rec.Block}
		chain, ok := chains[names.Key()]
		if !ok {
			var err error
			if chain, err = svc.jurisSvc.Resolve(ctx, names); err != nil {
				return nil, err
			}
			chains[names.Key()] = chain
		}

		if miss, missing := chain.Missing(names); missing {
			field := levelFields[miss.Level]
			res.ValidationErrors = append(res.ValidationErrors, RowError{
				Row:     c.row,
				Field:   field,
				Value:   fieldValue(c.rec, field),
				Message: miss.Message,
			})
			continue
		}
		c.app.StateCode = chain.StateCode.String
		c.app.DistrictCode = chain.DistrictCode.String
		c.app.BlockCode = chain.BlockCode.String
		resolved = append(resolved, c)
	}
	sortRowErrors(res.ValidationErrors)
	return resolved, nil
}

// sortRowErrors keeps jurisdiction misses next to the other errors of their row.
func sortRowErrors(errs []RowError) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Row < errs[j].Row })
}

func fieldValue(rec Record, field string) string {
	switch field {
	case "app_state":
		return rec.State
	case "district":
		return rec.District
	default:
		return rec.Block
	}
}

// insertRows stores the candidates in one transaction, one row at a time.
func (svc *Service) insertRows(ctx context.Context, candidates []candidate, res *Result) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := svc.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer core.RollbackUnlessCommitted(tx)

	inserted := 0
	for _, c := range candidates {
		if _, err = svc.appRepo.CreateApplicant(ctx, c.app, tx); err != nil {
			if errors.Cause(err) == applicant.ErrDuplicate {
				res.DuplicateRecords = append(res.DuplicateRecords, DuplicateRecord{
					Row:       c.row,
					RegNumber: c.app.RegNumber,
					Year:      c.app.Year,
					Message: fmt.Sprintf(
						"Duplicate entry: registration number %s already exists for year %d", c.app.RegNumber, c.app.Year,
					),
				})
				continue
			}
			return errors.Wrapf(err, "inserting row %d", c.row)
		}
		inserted++
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	res.SuccessfulInserts = inserted
	return nil
}
