package shortlist

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
)

var (
	ErrCriteriaNotFound       = errors.New("shortlist criteria not found")
	ErrCriteriaNotImplemented = errors.New("shortlist criteria logic not implemented")
	ErrBatchNotFound          = errors.New("shortlist batch not found")
	ErrBatchFrozen            = errors.New("shortlist batch is frozen")
)

// Threshold is the share of top ranked applicants selected per block, in percent.
type Threshold int

const (
	Top4 Threshold = 4
	Top6 Threshold = 6
	Top8 Threshold = 8
)

var Thresholds = []Threshold{Top4, Top6, Top8}

// ParseThreshold maps a stored threshold onto the supported ones.
func ParseThreshold(pct int) (Threshold, error) {
	for _, t := range Thresholds {
		if int(t) == pct {
			return t, nil
		}
	}
	return 0, errors.Wrapf(ErrCriteriaNotImplemented, "threshold %d%%", pct)
}

func (t Threshold) Percent() int { return int(t) }

func (t Threshold) String() string { return fmt.Sprintf("top %d%%", int(t)) }

// Criteria is a stored selection rule. Label is for display only.
type Criteria struct {
	ID           int    `db:"criteria_id" json:"criteria_id"`
	Label        string `db:"criteria_label" json:"criteria_label"`
	ThresholdPct int    `db:"threshold_pct" json:"threshold_pct"`
}

func (c Criteria) Threshold() (Threshold, error) {
	return ParseThreshold(c.ThresholdPct)
}

type Batch struct {
	ID          int64       `db:"shortlist_batch_id" json:"shortlist_batch_id"`
	Name        string      `db:"shortlist_name" json:"shortlist_name"`
	Description null.String `db:"shortlist_description" json:"shortlist_description"`
	CriteriaID  int         `db:"criteria_id" json:"criteria_id"`
	Year        int         `db:"nmms_year" json:"nmms_year"`
	Frozen      bool        `db:"frozen" json:"frozen"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"` // UTC
	BlockCodes  []string    `db:"-" json:"blocks"`
}

// BlockClaim is a block referenced by an unfrozen batch.
type BlockClaim struct {
	BatchID   int64  `db:"shortlist_batch_id"`
	BatchName string `db:"shortlist_name"`
	BlockCode string `db:"juris_code"`
	BlockName string `db:"juris_name"`
}

// ConflictError is returned when requested blocks are already covered by unfrozen batches.
type ConflictError struct {
	Claims []BlockClaim
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Claims))
	for _, c := range e.Claims {
		parts = append(parts, fmt.Sprintf("%s (batch '%s' #%d)", c.BlockName, c.BatchName, c.BatchID))
	}
	return "an active shortlist already exists for blocks: " + strings.Join(parts, ", ")
}

// Scope restricts ranking to the applicants of one block.
type Scope struct {
	Year         int
	StateCode    string
	DistrictCode string
	BlockCode    string
}

// Score is the ranking input of one applicant.
type Score struct {
	ApplicantID int64           `db:"applicant_id"`
	GMAT        decimal.Decimal `db:"gmat_score"`
	SAT         decimal.Decimal `db:"sat_score"`
}

type ShortlistedApplicant struct {
	ApplicantID int64           `db:"applicant_id" json:"applicant_id"`
	RegNumber   string          `db:"nmms_reg_number" json:"nmms_reg_number"`
	Name        string          `db:"student_name" json:"student_name"`
	FatherName  string          `db:"father_name" json:"father_name"`
	Gender      string          `db:"gender" json:"gender"`
	GMATScore   decimal.Decimal `db:"gmat_score" json:"gmat_score"`
	SATScore    decimal.Decimal `db:"sat_score" json:"sat_score"`
	BlockCode   string          `db:"nmms_block" json:"nmms_block"`
	BlockName   string          `db:"block_name" json:"block_name"`
}

func (sa ShortlistedApplicant) Composite() decimal.Decimal {
	return CompositeScore(sa.GMATScore, sa.SATScore)
}

type (
	Locations struct {
		State    string   `json:"state" validate:"required"`
		District string   `json:"district" validate:"required"`
		Blocks   []string `json:"blocks" validate:"required,min=1,dive,required"`
	}

	// NewBatch contains information needed to generate a new shortlist batch.
	NewBatch struct {
		CriteriaID  int       `json:"criteriaId" validate:"required"`
		Name        string    `json:"name" validate:"required"`
		Description string    `json:"description"`
		Year        int       `json:"year" validate:"required"`
		Locations   Locations `json:"locations"`
	}

	Result struct {
		BatchID                  int64 `json:"shortlistBatchId"`
		ShortlistedCount         int   `json:"shortlistedCountInBatch"`
		TotalApplicants          int   `json:"totalApplicantsCount"`
		TotalShortlistedInBlocks int   `json:"totalShortlistedInBlocks"`
	}
)

func (nb *NewBatch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Description = core.CleanString(nb.Description)
	nb.Locations.State = core.CleanString(nb.Locations.State)
	nb.Locations.District = core.CleanString(nb.Locations.District)

	// drop repeated blocks, keep the first spelling
	seen := make(map[string]bool, len(nb.Locations.Blocks))
	blocks := make([]string, 0, len(nb.Locations.Blocks))
	for _, b := range nb.Locations.Blocks {
		b = core.CleanString(b)
		key := strings.ToLower(b)
		if b != "" && seen[key] {
			continue
		}
		seen[key] = true
		blocks = append(blocks, b)
	}
	if nb.Locations.Blocks != nil {
		nb.Locations.Blocks = blocks
	}
	return validate.Struct(nb)
}
