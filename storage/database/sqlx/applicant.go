package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/applicant"
)

const (
	applicantColumns = `applicant_id, nmms_year, nmms_reg_number, student_name, father_name, mother_name, gender,
	aadhaar, dob, medium, contact_no1, contact_no2, home_address, family_income, current_institute,
	previous_institute, gmat_score, sat_score, app_state, district, nmms_block, created_at, updated_at`

	insertApplicantQuery = `
INSERT INTO applicant_primary_info (
	nmms_year, nmms_reg_number, student_name, father_name, mother_name, gender, aadhaar, dob, medium,
	contact_no1, contact_no2, home_address, family_income, current_institute, previous_institute,
	gmat_score, sat_score, app_state, district, nmms_block, created_at, updated_at
) VALUES (
	:nmms_year, :nmms_reg_number, :student_name, :father_name, :mother_name, :gender, :aadhaar, :dob, :medium,
	:contact_no1, :contact_no2, :home_address, :family_income, :current_institute, :previous_institute,
	:gmat_score, :sat_score, :app_state, :district, :nmms_block, :created_at, :updated_at
) RETURNING applicant_id`

	insertSecondaryQuery = `
INSERT INTO applicant_secondary_info (applicant_id, father_occupation, mother_occupation, num_siblings, remarks)
VALUES (:applicant_id, :father_occupation, :mother_occupation, :num_siblings, :remarks)`

	savepoint = "applicant_insert"
)

type applicantRepository struct {
	repository
}

var _ applicant.Repository = (*applicantRepository)(nil) // interface compliance check

func NewApplicantRepository(db *sqlx.DB) *applicantRepository {
	return &applicantRepository{repository{db: db}}
}

// CreateApplicant runs inside a savepoint when given a transaction, so that a duplicate does not
// abort the enclosing transaction. Without one, it uses its own.
func (repo applicantRepository) CreateApplicant(ctx context.Context, na applicant.NewApplicant, exec ...core.DBExecutor) (applicant.Applicant, error) {
	if len(exec) == 0 {
		tx, err := repo.db.BeginTxx(ctx, nil)
		if err != nil {
			return applicant.Applicant{}, errors.Wrap(err, "beginning transaction")
		}
		defer core.RollbackUnlessCommitted(tx)

		app, err := repo.insert(ctx, tx, na)
		if err != nil {
			return applicant.Applicant{}, err
		}
		return app, errors.Wrap(tx.Commit(), "committing transaction")
	}

	ext, err := repo.getExec(exec)
	if err != nil {
		return applicant.Applicant{}, err
	}
	if _, err = ext.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return applicant.Applicant{}, errors.Wrap(err, "creating savepoint")
	}
	app, err := repo.insert(ctx, ext, na)
	if err != nil {
		if _, rbErr := ext.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return applicant.Applicant{}, errors.Wrap(rbErr, "rolling back to savepoint")
		}
		return applicant.Applicant{}, err
	}
	if _, err = ext.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return applicant.Applicant{}, errors.Wrap(err, "releasing savepoint")
	}
	return app, nil
}

func (repo applicantRepository) insert(ctx context.Context, ext sqlx.ExtContext, na applicant.NewApplicant) (applicant.Applicant, error) {
	app := na.Applicant
	now := core.NowFunc().UTC()
	app.CreatedAt, app.UpdatedAt = now, now

	q, args, err := ext.BindNamed(insertApplicantQuery, app)
	if err != nil {
		return applicant.Applicant{}, errors.Wrap(err, "binding applicant")
	}
	if err = ext.QueryRowxContext(ctx, q, args...).Scan(&app.ID); err != nil {
		if isUniqueViolation(err) {
			return applicant.Applicant{}, applicant.ErrDuplicate
		}
		return applicant.Applicant{}, errors.Wrap(err, "inserting applicant")
	}

	sec := na.Secondary
	sec.ApplicantID = app.ID
	if _, err = sqlx.NamedExecContext(ctx, ext, insertSecondaryQuery, sec); err != nil {
		return applicant.Applicant{}, errors.Wrap(err, "inserting secondary info")
	}
	return app, nil
}

func (repo applicantRepository) GetApplicant(ctx context.Context, id int64, exec ...core.DBExecutor) (applicant.Applicant, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return applicant.Applicant{}, err
	}
	var app applicant.Applicant
	q := `SELECT ` + applicantColumns + ` FROM applicant_primary_info WHERE applicant_id = $1`
	if err = sqlx.GetContext(ctx, ext, &app, q, id); err != nil {
		return applicant.Applicant{}, trapNoRowsErr(err, applicant.ErrNotFound, "selecting applicant")
	}
	return app, nil
}

func (repo applicantRepository) GetSecondaryInfo(ctx context.Context, applicantID int64, exec ...core.DBExecutor) (applicant.SecondaryInfo, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return applicant.SecondaryInfo{}, err
	}
	var sec applicant.SecondaryInfo
	q := `
SELECT applicant_id, father_occupation, mother_occupation, num_siblings, remarks
FROM applicant_secondary_info WHERE applicant_id = $1`
	if err = sqlx.GetContext(ctx, ext, &sec, q, applicantID); err != nil {
		return applicant.SecondaryInfo{}, trapNoRowsErr(err, applicant.ErrNotFound, "selecting secondary info")
	}
	return sec, nil
}

func (repo applicantRepository) CountByYear(ctx context.Context, year int, exec ...core.DBExecutor) (int, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return 0, err
	}
	var n int
	if err = sqlx.GetContext(ctx, ext, &n, `SELECT count(*) FROM applicant_primary_info WHERE nmms_year = $1`, year); err != nil {
		return 0, errors.Wrap(err, "counting applicants")
	}
	return n, nil
}
