package echoapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/session"
	"github.com/trezcool/admissions/core/wizard"
	"github.com/trezcool/admissions/storage/inmem"
	"github.com/trezcool/admissions/tests"
)

func setup(t *testing.T) (*Server, *testutil.Gateway) {
	t.Helper()
	conf := testutil.Config(t)
	conf.Debug = false
	validate, translator := testutil.NewValidate()

	gw := new(testutil.Gateway)
	forms := wizard.NewRegistry()
	require.NoError(t, forms.Register(wizard.Form{Name: "test", Title: "Test", Steps: testutil.Steps(), Gateway: gw}))

	repo := inmemdb.NewSessionRepository(conf.Wizard.SessionTTL, 0, new(testutil.Logger))
	t.Cleanup(repo.Close)

	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     new(testutil.Logger),
		Sessions:   session.NewService(repo, forms, nil, conf.Wizard.UploadTick),
		Validate:   validate,
		Translator: translator,
	})
	return srv, gw
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
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return req, rec
}

func newUploadRequest(t *testing.T, path, filename string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile(uploadFormKey, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 report card"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req, httptest.NewRecorder()
}

func do(srv *Server, method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	srv.ServeHTTP(rec, req)
	return rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	assert.JSONEq(t, string(tt.wantData), rec.Body.String())
}

func sessionPath(id string, parts ...string) string {
	return strings.Join(append([]string{"/v1/sessions", id}, parts...), "/")
}

func TestServer_home(t *testing.T) {
	srv, _ := setup(t)

	rec := do(srv, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to the Admissions API!", rec.Body.String())

	rec = do(srv, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_signalShutdown(t *testing.T) {
	srv, _ := setup(t)

	srv.signalShutdown()
	srv.signalShutdown() // never blocks

	select {
	case sig := <-srv.ShutdownSignal():
		assert.Equal(t, syscall.SIGTERM, sig)
	case <-time.After(time.Second):
		t.Fatal("no shutdown signal")
	}
}

func Test_appHTTPErrorHandler(t *testing.T) {
	logger := new(testutil.Logger)
	validate, translator := testutil.NewValidate()
	var shutdowns int
	handler := newAppHTTPErrorHandler(logger, translator, func() { shutdowns++ })
	app := echo.New()

	valErr := validate.Struct(fileParams{ID: uuid.New().String(), Field: "bad-name"})
	require.Error(t, valErr)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantData string
	}{
		{name: "http error", err: echo.NewHTTPError(http.StatusTeapot, "teapot"), wantCode: http.StatusTeapot, wantData: `{"error":"teapot"}`},
		{
			name: "validator errors", err: valErr, wantCode: http.StatusBadRequest,
			wantData: `{"field":"must start with a letter and contain only letters, digits and underscores"}`,
		},
		{
			name: "field errors", err: core.NewValidationError(nil, core.FieldError{Field: "name", Error: "Name is required"}),
			wantCode: http.StatusBadRequest, wantData: `{"name":"Name is required"}`,
		},
		{
			name: "validation error", err: errors.Wrap(core.NewValidationError(errors.New("bad input")), "binding"),
			wantCode: http.StatusBadRequest, wantData: `{"error":"bad input"}`,
		},
		{
			name: "session not found", err: errors.Wrap(session.ErrNotFound, "abc"),
			wantCode: http.StatusNotFound, wantData: `{"error":"session not found"}`,
		},
		{
			name: "not editing", err: errors.Wrap(wizard.ErrNotEditing, "setting field"),
			wantCode: http.StatusConflict, wantData: `{"error":"wizard is not editing"}`,
		},
		{
			name: "not a file field", err: errors.Wrap(wizard.ErrNotFileField, "name"),
			wantCode: http.StatusBadRequest, wantData: `{"error":"not a file field"}`,
		},
		{name: "server error", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantData: `{"error":"Internal Server Error"}`},
		{
			name: "shutdown", err: errors.Wrap(core.NewShutdownError("integrity issue"), "submitting"),
			wantCode: http.StatusInternalServerError, wantData: `{"error":"Internal Server Error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, "/")
			handler(tt.err, app.NewContext(req, rec))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantData, rec.Body.String())
		})
	}

	assert.Equal(t, 1, shutdowns)
	assert.Equal(t, []string{"ERROR: Internal Server Error", "ERROR: Internal Server Error"}, logger.Messages())

	t.Run("HEAD", func(t *testing.T) {
		req, rec := newRequest(http.MethodHead, "/")
		handler(session.ErrNotFound, app.NewContext(req, rec))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}
