package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/admissions/apps/api/echo"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/ingest"
	"github.com/trezcool/admissions/core/shortlist"
	"github.com/trezcool/admissions/tests"
)

type testApp struct {
	server *Server
	store  *testutil.Store
	conf   *core.Config
}

func setup(t *testing.T) *testApp {
	// set up DB & repos
	store := testutil.NewStore(t)
	store.SeedJurisdictions(t)

	conf := &core.Config{TestMode: true}
	conf.Upload.TempDir = t.TempDir()
	conf.Upload.LogDir = t.TempDir()
	conf.Upload.MaxSize = "1M"

	// set up services
	validate, translator := testutil.NewValidator()
	logger := testutil.NewLogger(t)
	shortlistSvc := shortlist.NewService(store.DB, store.Shortlists, store.Applicants, store.Juris, validate, logger)
	ingestSvc := ingest.NewService(store.DB, store.Applicants, store.Juris, validate, translator, conf.Upload.LogDir, logger)

	// set up server
	server := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		ShortlistSvc: shortlistSvc,
		IngestSvc:    ingestSvc,
		Validate:     validate,
		Translator:   translator,
	})
	return &testApp{server: server, store: store, conf: conf}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

// newUploadRequest builds a multipart upload. An empty fileName sends the form without a file.
func newUploadRequest(t *testing.T, fileName string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/bulk-upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, httptest.NewRecorder()
}

func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshalObj(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarshalObj() failed: %v; data %s", err, data)
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}
