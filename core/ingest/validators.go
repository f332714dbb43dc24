package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/applicant"
)

var (
	MinYear  = 2022
	MinScore = decimal.NewFromInt(0)
	MaxScore = decimal.NewFromInt(90)

	numericTag  = "numeric"
	numericText = "must be a number"

	numberTag  = "number"
	numberText = "must be a whole number"

	yearTag  = "nmmsyear"
	yearText = fmt.Sprintf("must be a year between %d and the current year", MinYear)

	scoreTag  = "score"
	scoreText = fmt.Sprintf("must be between %s and %s", MinScore, MaxScore)

	exactLenTag  = "exactlen"
	exactLenText = "must be exactly {0} characters"

	maxLenTag  = "maxlen"
	maxLenText = "must be at most {0} characters"

	int4Tag  = "int4"
	int4Text = fmt.Sprintf("must not be greater than %d", math.MaxInt32)

	digitsTag  = "digits"
	digitsText = "must be exactly {0} digits"

	genderTag  = "gender"
	genderText = "must be one of M, F, O"

	dateFormatTag  = "dateformat"
	dateFormatText = "must be a valid date in DD-MM-YYYY or YYYY-MM-DD format"

	minAgeTag  = "minage"
	minAgeText = "must be at least {0} years old"

	digitsRegex = regexp.MustCompile(`^[0-9]+$`)
)

// InitValidators registers the upload row validators and their messages.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterCustomTranslation(validate, translator, numericTag, numericText, true)
	core.RegisterCustomTranslation(validate, translator, numberTag, numberText, true)

	_ = validate.RegisterValidation(yearTag, yearValidation)
	core.RegisterCustomTranslation(validate, translator, yearTag, yearText)

	_ = validate.RegisterValidation(scoreTag, scoreValidation)
	core.RegisterCustomTranslation(validate, translator, scoreTag, scoreText)

	_ = validate.RegisterValidation(exactLenTag, exactLenValidation)
	core.RegisterParamTranslation(validate, translator, exactLenTag, exactLenText)

	_ = validate.RegisterValidation(maxLenTag, maxLenValidation)
	core.RegisterParamTranslation(validate, translator, maxLenTag, maxLenText)

	_ = validate.RegisterValidation(int4Tag, int4Validation)
	core.RegisterCustomTranslation(validate, translator, int4Tag, int4Text)

	_ = validate.RegisterValidation(digitsTag, digitsValidation)
	core.RegisterParamTranslation(validate, translator, digitsTag, digitsText)

	_ = validate.RegisterValidation(genderTag, genderValidation)
	core.RegisterCustomTranslation(validate, translator, genderTag, genderText)

	_ = validate.RegisterValidation(dateFormatTag, dateFormatValidation)
	core.RegisterCustomTranslation(validate, translator, dateFormatTag, dateFormatText)

	_ = validate.RegisterValidation(minAgeTag, minAgeValidation)
	core.RegisterParamTranslation(validate, translator, minAgeTag, minAgeText)
}

func paramInt(fl validator.FieldLevel) int {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("bad %s param %q", fl.GetTag(), fl.Param()))
	}
	return n
}

// yearValidation checks a year within [MinYear, current year].
func yearValidation(fl validator.FieldLevel) bool {
	year, err := strconv.Atoi(fl.Field().String())
	if err != nil {
		return false
	}
	return year >= MinYear && year <= core.NowFunc().Year()
}

// scoreValidation checks a score within [MinScore, MaxScore].
func scoreValidation(fl validator.FieldLevel) bool {
	score, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return score.GreaterThanOrEqual(MinScore) && score.LessThanOrEqual(MaxScore)
}

func exactLenValidation(fl validator.FieldLevel) bool {
	return len([]rune(fl.Field().String())) == paramInt(fl)
}

func maxLenValidation(fl validator.FieldLevel) bool {
	return len([]rune(fl.Field().String())) <= paramInt(fl)
}

// int4Validation checks that an integer fits a postgres INT column.
func int4Validation(fl validator.FieldLevel) bool {
	_, err := strconv.ParseInt(fl.Field().String(), 10, 32)
	return err == nil
}

func digitsValidation(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len(s) == paramInt(fl) && digitsRegex.MatchString(s)
}

func genderValidation(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	for _, g := range applicant.Genders {
		if s == g {
			return true
		}
	}
	return false
}

func dateFormatValidation(fl validator.FieldLevel) bool {
	_, ok := parseDate(fl.Field().String())
	return ok
}

// minAgeValidation checks that a date of birth is at least param years before today.
func minAgeValidation(fl validator.FieldLevel) bool {
	dob, ok := parseDate(fl.Field().String())
	if !ok {
		return true // reported by dateformat
	}
	now := core.NowFunc().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !dob.After(today.AddDate(-paramInt(fl), 0, 0))
}
