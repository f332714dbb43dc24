package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/admissions/core"
)

var (
	idParam   = "id"
	yearParam = "year"
)

// BatchFilter holds the query params of the batch listing.
type BatchFilter struct {
	Year int
}

func (f *BatchFilter) Bind(ctx echo.Context) error {
	val := ctx.QueryParam(yearParam)
	if val == "" {
		return nil
	}
	year, err := strconv.Atoi(val)
	if err != nil || year < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: yearParam, Error: "must be a valid year"})
	}
	f.Year = year
	return nil
}

func bindID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(idParam), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: idParam, Error: "must be a positive integer"})
	}
	return id, nil
}
