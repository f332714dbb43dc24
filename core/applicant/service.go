package applicant

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

var (
	ErrNotFound  = errors.New("applicant not found")
	ErrDuplicate = errors.New("an applicant with this registration number already exists for this year")
)

type Repository interface {
	// CreateApplicant inserts the applicant and its secondary info.
	// A unique key violation returns ErrDuplicate and leaves an enclosing transaction usable.
	CreateApplicant(ctx context.Context, na NewApplicant, exec ...core.DBExecutor) (Applicant, error)
	GetApplicant(ctx context.Context, id int64, exec ...core.DBExecutor) (Applicant, error)
	GetSecondaryInfo(ctx context.Context, applicantID int64, exec ...core.DBExecutor) (SecondaryInfo, error)
	CountByYear(ctx context.Context, year int, exec ...core.DBExecutor) (int, error)
}
