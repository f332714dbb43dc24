package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/applicant"
)

// Accepted date-of-birth layouts: DD-MM-YYYY and YYYY-MM-DD.
var dateLayouts = []string{"02-01-2006", "2006-01-02"}

// Record is one raw upload row. Column names are the json tags.
// Length and range limits follow the applicant tables.
type Record struct {
	Year              string `json:"nmms_year" validate:"required,numeric,nmmsyear"`
	RegNumber         string `json:"nmms_reg_number" validate:"required,exactlen=11"`
	Name              string `json:"student_name" validate:"required,maxlen=150"`
	FatherName        string `json:"father_name" validate:"required,maxlen=150"`
	MotherName        string `json:"mother_name" validate:"maxlen=150"`
	Gender            string `json:"gender" validate:"required,gender"`
	Aadhaar           string `json:"aadhaar" validate:"omitempty,digits=12"`
	DOB               string `json:"dob" validate:"omitempty,dateformat,minage=5"`
	Medium            string `json:"medium" validate:"maxlen=50"`
	ContactNo1        string `json:"contact_no1" validate:"omitempty,digits=10"`
	ContactNo2        string `json:"contact_no2" validate:"omitempty,digits=10"`
	HomeAddress       string `json:"home_address"`
	FamilyIncome      string `json:"family_income" validate:"omitempty,number,int4"`
	CurrentInstitute  string `json:"current_institute" validate:"maxlen=200"`
	PreviousInstitute string `json:"previous_institute" validate:"maxlen=200"`
	GMATScore         string `json:"gmat_score" validate:"required,numeric,score"`
	SATScore          string `json:"sat_score" validate:"required,numeric,score"`
	State             string `json:"app_state" validate:"required"`
	District          string `json:"district" validate:"required"`
	Block             string `json:"nmms_block" validate:"required"`
	FatherOccupation  string `json:"father_occupation" validate:"maxlen=100"`
	MotherOccupation  string `json:"mother_occupation" validate:"maxlen=100"`
	Siblings          string `json:"num_siblings" validate:"omitempty,number,int4"`
	Remarks           string `json:"remarks"`
}

// Field labels used in upload logs.
var fieldLabels = map[string]string{
	"nmms_year":          "Year",
	"nmms_reg_number":    "Registration Number",
	"student_name":       "Student Name",
	"father_name":        "Father's Name",
	"mother_name":        "Mother's Name",
	"gender":             "Gender",
	"aadhaar":            "Aadhaar Number",
	"dob":                "Date of Birth",
	"medium":             "Medium",
	"contact_no1":        "Contact Number 1",
	"contact_no2":        "Contact Number 2",
	"home_address":       "Home Address",
	"family_income":      "Family Income",
	"current_institute":  "Current Institute",
	"previous_institute": "Previous Institute",
	"gmat_score":         "GMAT Score",
	"sat_score":          "SAT Score",
	"app_state":          "State",
	"district":           "District",
	"nmms_block":         "Block",
	"father_occupation":  "Father's Occupation",
	"mother_occupation":  "Mother's Occupation",
	"num_siblings":       "Number of Siblings",
	"remarks":            "Remarks",
}

// FieldLabel returns the human-friendly name of a column.
func FieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

// NewRecord reads a parsed row. Unknown columns are ignored.
func NewRecord(row Row) Record {
	return Record{
		Year:              row["nmms_year"],
		RegNumber:         row["nmms_reg_number"],
		Name:              row["student_name"],
		FatherName:        row["father_name"],
		MotherName:        row["mother_name"],
		Gender:            row["gender"],
		Aadhaar:           row["aadhaar"],
		DOB:               row["dob"],
		Medium:            row["medium"],
		ContactNo1:        row["contact_no1"],
		ContactNo2:        row["contact_no2"],
		HomeAddress:       row["home_address"],
		FamilyIncome:      row["family_income"],
		CurrentInstitute:  row["current_institute"],
		PreviousInstitute: row["previous_institute"],
		GMATScore:         row["gmat_score"],
		SATScore:          row["sat_score"],
		State:             row["app_state"],
		District:          row["district"],
		Block:             row["nmms_block"],
		FatherOccupation:  row["father_occupation"],
		MotherOccupation:  row["mother_occupation"],
		Siblings:          row["num_siblings"],
		Remarks:           row["remarks"],
	}
}

// Clean trims every field and uppercases the gender.
func (r *Record) Clean() {
	fields := []*string{
		&r.Year, &r.RegNumber, &r.Name, &r.FatherName, &r.MotherName, &r.Gender, &r.Aadhaar, &r.DOB,
		&r.Medium, &r.ContactNo1, &r.ContactNo2, &r.HomeAddress, &r.FamilyIncome, &r.CurrentInstitute,
		&r.PreviousInstitute, &r.GMATScore, &r.SATScore, &r.State, &r.District, &r.Block,
		&r.FatherOccupation, &r.MotherOccupation, &r.Siblings, &r.Remarks,
	}
	for _, f := range fields {
		*f = core.CleanString(*f)
	}
	r.Gender = strings.ToUpper(r.Gender)
}

// parseDate accepts DD-MM-YYYY or YYYY-MM-DD.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullInt(s string) null.Int {
	if s == "" {
		return null.Int{}
	}
	i, err := strconv.Atoi(s)
	return null.NewInt(i, err == nil)
}

// Sanitize converts a valid, cleaned record.
// Jurisdiction codes are left empty: they are resolved separately.
func (r Record) Sanitize() applicant.NewApplicant {
	year, _ := strconv.Atoi(r.Year)
	gmat, _ := decimal.NewFromString(r.GMATScore)
	sat, _ := decimal.NewFromString(r.SATScore)

	var dob null.Time
	if t, ok := parseDate(r.DOB); ok {
		dob = null.TimeFrom(t)
	}

	return applicant.NewApplicant{
		Applicant: applicant.Applicant{
			Year:              year,
			RegNumber:         r.RegNumber,
			Name:              r.Name,
			FatherName:        r.FatherName,
			MotherName:        nullString(r.MotherName),
			Gender:            r.Gender,
			Aadhaar:           nullString(r.Aadhaar),
			DOB:               dob,
			Medium:            nullString(r.Medium),
			ContactNo1:        nullString(r.ContactNo1),
			ContactNo2:        nullString(r.ContactNo2),
			HomeAddress:       nullString(r.HomeAddress),
			FamilyIncome:      nullInt(r.FamilyIncome),
			CurrentInstitute:  nullString(r.CurrentInstitute),
			PreviousInstitute: nullString(r.PreviousInstitute),
			GMATScore:         gmat,
			SATScore:          sat,
		},
		Secondary: applicant.SecondaryInfo{
			FatherOccupation: nullString(r.FatherOccupation),
			MotherOccupation: nullString(r.MotherOccupation),
			Siblings:         nullInt(r.Siblings),
			Remarks:          nullString(r.Remarks),
		},
	}
}

// FormatDate renders a sanitized date as YYYY-MM-DD.
func FormatDate(t null.Time) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format("2006-01-02")
}
