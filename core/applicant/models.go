package applicant

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Gender codes.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

var Genders = []string{GenderMale, GenderFemale, GenderOther}

// Applicant is one admissions candidate. RegNumber is unique per Year.
type Applicant struct {
	ID                int64           `db:"applicant_id" json:"applicant_id"`
	Year              int             `db:"nmms_year" json:"nmms_year"`
	RegNumber         string          `db:"nmms_reg_number" json:"nmms_reg_number"`
	Name              string          `db:"student_name" json:"student_name"`
	FatherName        string          `db:"father_name" json:"father_name"`
	MotherName        null.String     `db:"mother_name" json:"mother_name"`
	Gender            string          `db:"gender" json:"gender"`
	Aadhaar           null.String     `db:"aadhaar" json:"aadhaar"`
	DOB               null.Time       `db:"dob" json:"dob"`
	Medium            null.String     `db:"medium" json:"medium"`
	ContactNo1        null.String     `db:"contact_no1" json:"contact_no1"`
	ContactNo2        null.String     `db:"contact_no2" json:"contact_no2"`
	HomeAddress       null.String     `db:"home_address" json:"home_address"`
	FamilyIncome      null.Int        `db:"family_income" json:"family_income"`
	CurrentInstitute  null.String     `db:"current_institute" json:"current_institute"`
	PreviousInstitute null.String     `db:"previous_institute" json:"previous_institute"`
	GMATScore         decimal.Decimal `db:"gmat_score" json:"gmat_score"`
	SATScore          decimal.Decimal `db:"sat_score" json:"sat_score"`
	StateCode         string          `db:"app_state" json:"app_state"`
	DistrictCode      string          `db:"district" json:"district"`
	BlockCode         string          `db:"nmms_block" json:"nmms_block"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"` // UTC
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"` // UTC
}

// SecondaryInfo is the companion row created alongside every Applicant.
type SecondaryInfo struct {
	ApplicantID      int64       `db:"applicant_id" json:"applicant_id"`
	FatherOccupation null.String `db:"father_occupation" json:"father_occupation"`
	MotherOccupation null.String `db:"mother_occupation" json:"mother_occupation"`
	Siblings         null.Int    `db:"num_siblings" json:"num_siblings"`
	Remarks          null.String `db:"remarks" json:"remarks"`
}

// NewApplicant is a sanitized applicant ready to be stored, with its secondary info.
type NewApplicant struct {
	Applicant
	Secondary SecondaryInfo
}
