package testutil

import (
	"context"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/applicant"
	"github.com/trezcool/admissions/core/ingest"
	"github.com/trezcool/admissions/core/jurisdiction"
	"github.com/trezcool/admissions/core/shortlist"
	dummydb "github.com/trezcool/admissions/storage/database/dummy"
)

// Codes of the seeded jurisdiction tree.
const (
	StateKA      = "KA"
	DistrictBN   = "KA-BN"
	DistrictMY   = "KA-MY"
	BlockAnekal  = "KA-BN-AN"
	BlockHoskote = "KA-BN-HK"
	BlockHunsur  = "KA-MY-HU"
	StateGA      = "GA"
	DistrictNG   = "GA-NG"
	BlockBardez  = "GA-NG-BA"
)

// Store bundles the in-memory database and its repositories.
type Store struct {
	DB         *dummydb.DB
	Juris      jurisdiction.Repository
	Applicants applicant.Repository
	Shortlists shortlist.Repository
}

func NewStore(t *testing.T) *Store {
	db, err := dummydb.Open()
	require.NoError(t, err)
	return &Store{
		DB:         db,
		Juris:      dummydb.NewJurisdictionRepository(db),
		Applicants: dummydb.NewApplicantRepository(db),
		Shortlists: dummydb.NewShortlistRepository(db),
	}
}

func node(code, name string, typ jurisdiction.Type, parent string) jurisdiction.Node {
	return jurisdiction.Node{Code: code, Name: name, Type: typ, ParentCode: null.NewString(parent, parent != "")}
}

// Nodes is a small two-state tree. Every block sits under a division and a district.
func Nodes() []jurisdiction.Node {
	return []jurisdiction.Node{
		node(StateKA, "Karnataka", jurisdiction.TypeState, ""),
		node("KA-DV1", "Bangalore Division", jurisdiction.TypeDivision, StateKA),
		node("KA-DV2", "Mysore Division", jurisdiction.TypeDivision, StateKA),
		node(DistrictBN, "Bangalore North", jurisdiction.TypeDistrict, "KA-DV1"),
		node(DistrictMY, "Mysore", jurisdiction.TypeDistrict, "KA-DV2"),
		node(BlockAnekal, "Anekal", jurisdiction.TypeBlock, DistrictBN),
		node(BlockHoskote, "Hoskote", jurisdiction.TypeBlock, DistrictBN),
		node(BlockHunsur, "Hunsur", jurisdiction.TypeBlock, DistrictMY),
		node(StateGA, "Goa", jurisdiction.TypeState, ""),
		node("GA-DV1", "Goa Division", jurisdiction.TypeDivision, StateGA),
		node(DistrictNG, "North Goa", jurisdiction.TypeDistrict, "GA-DV1"),
		node(BlockBardez, "Bardez", jurisdiction.TypeBlock, DistrictNG),
	}
}

func (s *Store) SeedJurisdictions(t *testing.T) {
	require.NoError(t, s.Juris.UpsertNodes(context.Background(), Nodes()))
}

// chains of the seeded blocks
var blockChains = map[string][2]string{
	BlockAnekal:  {StateKA, DistrictBN},
	BlockHoskote: {StateKA, DistrictBN},
	BlockHunsur:  {StateKA, DistrictMY},
	BlockBardez:  {StateGA, DistrictNG},
}

// CreateApplicant stores an applicant of a seeded block with the given scores.
func (s *Store) CreateApplicant(t *testing.T, year int, regNumber, block string, gmat, sat float64) applicant.Applicant {
	chain, ok := blockChains[block]
	require.True(t, ok, "unknown block %s", block)

	app, err := s.Applicants.CreateApplicant(context.Background(), applicant.NewApplicant{
		Applicant: applicant.Applicant{
			Year:         year,
			RegNumber:    regNumber,
			Name:         "Student " + regNumber,
			FatherName:   "Father " + regNumber,
			Gender:       applicant.GenderFemale,
			GMATScore:    decimal.NewFromFloat(gmat),
			SATScore:     decimal.NewFromFloat(sat),
			StateCode:    chain[0],
			DistrictCode: chain[1],
			BlockCode:    block,
		},
	})
	require.NoError(t, err)
	return app
}

// NewValidator returns a validator with every custom tag and message registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	ingest.InitValidators(validate, translator)
	return validate, translator
}

type logger struct {
	t *testing.T
}

// NewLogger returns a core.Logger writing to the test log.
func NewLogger(t *testing.T) core.Logger {
	return &logger{t: t}
}

func (l *logger) log(level, msg string, args []interface{}) {
	l.t.Helper()
	l.t.Log(append([]interface{}{level, msg}, args...)...)
}

func (l *logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *logger) Fatal(msg string, args ...interface{}) {
	l.t.Helper()
	l.t.Fatal(append([]interface{}{"FATAL", msg}, args...)...)
}
