package echoapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/ingest"
	"github.com/trezcool/admissions/services/metrics"
)

const uploadField = "file"

type (
	uploadApi struct {
		svc     *ingest.Service
		tempDir string
		logger  core.Logger
	}

	// UploadResponse only carries counts: row details are in the log file.
	UploadResponse struct {
		Message           string `json:"message"`
		TotalRecords      int    `json:"totalRecords"`
		SuccessfulInserts int    `json:"successfulInserts"`
		ValidationErrors  int    `json:"validationErrors"`
		DuplicateRecords  int    `json:"duplicateRecords"`
		LogFile           string `json:"logFile"`
	}
)

func registerUploadAPI(g *echo.Group, svc *ingest.Service, conf *core.Config, logger core.Logger) {
	api := uploadApi{svc: svc, tempDir: conf.Upload.TempDir, logger: logger}

	ug := g.Group("/bulk-upload")
	ug.POST("", api.upload, middleware.BodyLimit(conf.Upload.MaxSize))
	ug.GET("/logs/:logFileName", api.downloadLog)
}

func newUploadResponse(res ingest.Result) UploadResponse {
	return UploadResponse{
		Message:           res.Message,
		TotalRecords:      res.TotalRecords,
		SuccessfulInserts: res.SuccessfulInserts,
		ValidationErrors:  len(res.ValidationErrors),
		DuplicateRecords:  len(res.DuplicateRecords),
		LogFile:           res.LogFile,
	}
}

// saveTemp copies the uploaded file into the temp dir and returns its path.
func (api *uploadApi) saveTemp(ctx echo.Context) (path, name string, err error) {
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return "", "", ingest.ErrNoFile
		}
		return "", "", errors.Wrap(err, "reading form file")
	}

	src, err := fh.Open()
	if err != nil {
		return "", "", errors.Wrap(err, "opening form file")
	}
	defer func() { _ = src.Close() }()

	if err = os.MkdirAll(api.tempDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "creating temp dir")
	}
	dst, err := os.CreateTemp(api.tempDir, "upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return "", "", errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = dst.Close() }()

	if _, err = io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return "", "", errors.Wrap(err, "saving upload")
	}
	return dst.Name(), filepath.Base(fh.Filename), nil
}

// Handlers

func (api *uploadApi) upload(ctx echo.Context) error {
	path, name, err := api.saveTemp(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.UploadFile(ctx.Request().Context(), path, name)
	if err != nil && !res.Failed {
		return errors.Wrap(err, "processing upload")
	}
	metrics.ObserveUpload(res.SuccessfulInserts, res.InvalidRows(), len(res.DuplicateRecords), res.Failed)

	if res.Failed {
		api.logger.Error("bulk upload failed", errors.Wrap(err, "inserting rows"), map[string]interface{}{
			"run":  res.RunID,
			"file": name,
		})
		return ctx.JSON(http.StatusInternalServerError, newUploadResponse(res))
	}

	api.logger.Info("bulk upload processed", map[string]interface{}{
		"run":      res.RunID,
		"file":     name,
		"inserted": res.SuccessfulInserts,
	})
	return ctx.JSON(http.StatusOK, newUploadResponse(res))
}

func (api *uploadApi) downloadLog(ctx echo.Context) error {
	name := ctx.Param("logFileName")
	path, err := api.svc.LogPath(name)
	if err != nil {
		return errors.Wrap(err, "locating log file")
	}
	return ctx.Attachment(path, name)
}
