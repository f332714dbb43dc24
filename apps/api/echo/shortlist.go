package echoapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/shortlist"
	"github.com/trezcool/admissions/services/metrics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type (
	shortlistApi struct {
		svc    *shortlist.Service
		logger core.Logger
	}

	StartShortlistResponse struct {
		Message string `json:"message"`
		shortlist.Result
	}
)

func registerShortlistAPI(g *echo.Group, svc *shortlist.Service, logger core.Logger) {
	api := shortlistApi{svc: svc, logger: logger}

	sg := g.Group("/generate-shortlist")
	sg.POST("/start-shortlist", api.start)
	sg.GET("/batches", api.query)

	// detail endpoints
	dg := sg.Group("/batches/:id")
	dg.GET("", api.retrieve)
	dg.GET("/applicants", api.applicants)
	dg.GET("/export", api.export)
	dg.PUT("/freeze", api.freeze)
	dg.DELETE("", api.destroy)
}

// runResult classifies the outcome of a shortlist request for metrics.
func runResult(err error) string {
	switch errors.Cause(err).(type) {
	case nil:
		return metrics.ResultCreated
	case *shortlist.ConflictError:
		return metrics.ResultConflict
	case *core.ValidationError, validator.ValidationErrors:
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}

// Handlers

func (api *shortlistApi) start(ctx echo.Context) error {
	start := time.Now()

	var data shortlist.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}

	res, err := api.svc.CreateBatch(ctx.Request().Context(), data)
	metrics.ObserveShortlist(runResult(err), res.ShortlistedCount, start)
	if err != nil {
		return errors.Wrap(err, "creating shortlist batch")
	}

	api.logger.Info("shortlist batch created", map[string]interface{}{
		"batch":       res.BatchID,
		"shortlisted": res.ShortlistedCount,
	})
	return ctx.JSON(http.StatusCreated, StartShortlistResponse{
		Message: "Shortlist generated successfully",
		Result:  res,
	})
}

func (api *shortlistApi) query(ctx echo.Context) error {
	var filter BatchFilter
	if err := filter.Bind(ctx); err != nil {
		return err
	}
	batches, err := api.svc.ListBatches(ctx.Request().Context(), filter.Year)
	if err != nil {
		return errors.Wrap(err, "listing batches")
	}
	if batches == nil {
		batches = []shortlist.Batch{}
	}
	return ctx.JSON(http.StatusOK, batches)
}

func (api *shortlistApi) retrieve(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	batch, err := api.svc.GetBatch(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting batch")
	}
	return ctx.JSON(http.StatusOK, batch)
}

func (api *shortlistApi) applicants(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	apps, err := api.svc.ShortlistedApplicants(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting shortlisted applicants")
	}
	if apps == nil {
		apps = []shortlist.ShortlistedApplicant{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *shortlistApi) export(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	batch, err := api.svc.GetBatch(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting batch")
	}

	var buf bytes.Buffer
	if err = api.svc.ExportBatchXLSX(ctx.Request().Context(), id, &buf); err != nil {
		return errors.Wrap(err, "exporting batch")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+shortlist.ExportFileName(batch)+`"`)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (api *shortlistApi) freeze(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	batch, err := api.svc.FreezeBatch(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "freezing batch")
	}
	return ctx.JSON(http.StatusOK, batch)
}

func (api *shortlistApi) destroy(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteBatch(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	return ctx.NoContent(http.StatusNoContent)
}
