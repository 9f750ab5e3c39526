package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core/wizard"
)

func openSession(t *testing.T, srv *Server) SessionResponse {
	t.Helper()
	rec := do(srv, http.MethodPost, "/v1/forms/test/sessions")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeSession(t, rec)
}

// advance fills the current step with values and moves forward.
func advance(t *testing.T, srv *Server, id string, values map[string]interface{}) SessionResponse {
	t.Helper()
	rec := do(srv, http.MethodPatch, sessionPath(id, "fields"), marshalObj(t, values))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(srv, http.MethodPost, sessionPath(id, "next"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeSession(t, rec)
	require.Empty(t, resp.State.Errors)
	return resp
}

var (
	identity = map[string]interface{}{"name": "Jane Doe", "email": "jane@example.com"}
	contact  = map[string]interface{}{"phone": "+250 788 123 456", "dateOfBirth": "2008-03-14"}
	account  = map[string]interface{}{"password": "Kigali#2024!", "confirmPassword": "Kigali#2024!", "agreeTerms": true}
)

func Test_formsApi_listForms(t *testing.T) {
	srv, _ := setup(t)

	rec := do(srv, http.MethodGet, "/v1/forms")
	require.Equal(t, http.StatusOK, rec.Code)

	var forms []FormResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forms))
	require.Len(t, forms, 1)
	assert.Equal(t, "test", forms[0].Name)
	assert.Equal(t, "Test", forms[0].Title)
	require.Len(t, forms[0].Steps, 3)
	assert.Equal(t, "Contact", forms[0].Steps[1].Title)
	assert.Equal(t, FieldResponse{Name: "dateOfBirth", Label: "Date of Birth", Kind: wizard.KindDate}, forms[0].Steps[1].Fields[1])
	assert.Equal(t, wizard.KindText, forms[0].Steps[0].Fields[0].Kind)
}

func Test_formsApi_errors(t *testing.T) {
	srv, _ := setup(t)
	sess := openSession(t, srv)

	tests := []httpTest{
		{
			name: "unknown form", method: http.MethodPost, path: "/v1/forms/nope/sessions",
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "form not found"}),
		},
		{
			name: "malformed session id", method: http.MethodGet, path: sessionPath("abc"),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "unknown session", method: http.MethodGet, path: sessionPath(uuid.New().String()),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "session not found"}),
		},
		{
			name: "bad values", method: http.MethodPatch, path: sessionPath(sess.ID, "fields"),
			body:     []byte(`{"name": "Jane", "nope": "x", "dateOfBirth": "14/03/2008", "document": "report.pdf"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"nope":        "unknown field",
				"dateOfBirth": "expected a date as YYYY-MM-DD",
				"document":    "files must be uploaded",
			}),
		},
		{
			name: "submit before the final step", method: http.MethodPost, path: sessionPath(sess.ID, "submit"),
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "only the final step can be submitted"}),
		},
		{
			name: "nothing to retry", method: http.MethodPost, path: sessionPath(sess.ID, "retry"),
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "no failed submission to retry"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec := do(srv, http.MethodGet, sessionPath(sess.ID))
	assert.Empty(t, decodeSession(t, rec).State.Draft, "a rejected patch sets nothing")
}

func Test_formsApi_flow(t *testing.T) {
	srv, gw := setup(t)

	sess := openSession(t, srv)
	assert.Len(t, sess.ID, 36)
	assert.Equal(t, 1, sess.State.Step)
	assert.Equal(t, 3, sess.State.TotalSteps)
	assert.Equal(t, wizard.StatusIdle, sess.State.Status)
	assert.Equal(t, []string{"name", "email"}, sess.State.Fields)

	// validation failures are reported in the state
	rec := do(srv, http.MethodPost, sessionPath(sess.ID, "next"))
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeSession(t, rec).State
	assert.Equal(t, 1, state.Step)
	assert.Equal(t, map[string]string{"name": "Name is required", "email": "Email is required"}, state.Errors)

	state = advance(t, srv, sess.ID, identity).State
	assert.Equal(t, 2, state.Step)
	assert.Equal(t, "Contact", state.Title)

	rec = do(srv, http.MethodPost, sessionPath(sess.ID, "prev"))
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeSession(t, rec).State
	assert.Equal(t, 1, state.Step)
	assert.Equal(t, "Jane Doe", state.Draft["name"])

	advance(t, srv, sess.ID, map[string]interface{}{})
	advance(t, srv, sess.ID, contact)

	rec = do(srv, http.MethodPatch, sessionPath(sess.ID, "fields"), marshalObj(t, account))
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeSession(t, rec).State
	assert.Equal(t, "********", state.Draft["password"])
	assert.Equal(t, true, state.Draft["agreeTerms"])

	rec = do(srv, http.MethodPost, sessionPath(sess.ID, "submit"))
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeSession(t, rec).State
	assert.Equal(t, wizard.StatusSuccess, state.Status)
	assert.NotEmpty(t, state.ReceiptID)
	assert.Empty(t, state.Draft)

	require.Len(t, gw.Submissions(), 1)
	draft := gw.Submissions()[0]
	assert.Equal(t, time.Date(2008, 3, 14, 0, 0, 0, 0, time.UTC), draft.Time("dateOfBirth"))
	assert.Equal(t, "Kigali#2024!", draft.String("password"))
	assert.Equal(t, []string{"test"}, gw.Forms())

	// a submitted wizard only resets
	rec = do(srv, http.MethodPatch, sessionPath(sess.ID, "fields"), marshalObj(t, identity))
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = do(srv, http.MethodPost, sessionPath(sess.ID, "reset"))
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeSession(t, rec).State
	assert.Equal(t, 1, state.Step)
	assert.Equal(t, wizard.StatusIdle, state.Status)
	assert.Empty(t, state.ReceiptID)
}

func Test_formsApi_retry(t *testing.T) {
	srv, gw := setup(t)
	gw.SetErr(errors.New("relay down"))

	sess := openSession(t, srv)
	advance(t, srv, sess.ID, identity)
	advance(t, srv, sess.ID, contact)

	// next on the final step submits
	rec := do(srv, http.MethodPatch, sessionPath(sess.ID, "fields"), marshalObj(t, account))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(srv, http.MethodPost, sessionPath(sess.ID, "next"))
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeSession(t, rec).State
	assert.Equal(t, wizard.StatusFailure, state.Status)
	assert.Equal(t, "We could not send your submission: relay down", state.Message)

	rec = do(srv, http.MethodPost, sessionPath(sess.ID, "next"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	gw.SetErr(nil)
	rec = do(srv, http.MethodPost, sessionPath(sess.ID, "retry"))
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeSession(t, rec).State
	assert.Equal(t, wizard.StatusIdle, state.Status)
	assert.Equal(t, 3, state.Step)
	assert.Empty(t, state.Message)
	assert.Equal(t, "Jane Doe", state.Draft["name"], "the draft survives a failure")

	rec = do(srv, http.MethodPost, sessionPath(sess.ID, "submit"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wizard.StatusSuccess, decodeSession(t, rec).State.Status)
	assert.Len(t, gw.Submissions(), 2)
}

func Test_formsApi_attachFile(t *testing.T) {
	srv, _ := setup(t)
	sess := openSession(t, srv)
	advance(t, srv, sess.ID, identity)

	tests := []struct {
		name     string
		field    string
		filename string
		wantCode int
		wantData string
	}{
		{name: "no file", field: "document", wantCode: http.StatusBadRequest, wantData: `{"file":"no file was uploaded"}`},
		{name: "not a file field", field: "phone", filename: "cv.pdf", wantCode: http.StatusBadRequest, wantData: `{"error":"not a file field"}`},
		{name: "unknown field", field: "nope", filename: "cv.pdf", wantCode: http.StatusBadRequest, wantData: `{"error":"unknown field"}`},
		{
			name: "bad field name", field: "9lives", filename: "cv.pdf", wantCode: http.StatusBadRequest,
			wantData: `{"field":"must start with a letter and contain only letters, digits and underscores"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newUploadRequest(t, sessionPath(sess.ID, "files", tt.field), tt.filename)
			srv.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantData, rec.Body.String())
		})
	}

	req, rec := newUploadRequest(t, sessionPath(sess.ID, "files", "document"), "report.pdf")
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	doc, ok := decodeSession(t, rec).State.Draft["document"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "report.pdf", doc["name"])
	assert.Equal(t, "application/octet-stream", doc["content_type"])
	assert.Len(t, doc["id"], 36)

	assert.Eventually(t, func() bool {
		var resp SessionResponse
		rec := do(srv, http.MethodGet, sessionPath(sess.ID))
		return json.Unmarshal(rec.Body.Bytes(), &resp) == nil && resp.State.UploadProgress["document"] == 100
	}, time.Second, 5*time.Millisecond)
}

func Test_formsApi_destroy(t *testing.T) {
	srv, _ := setup(t)
	sess := openSession(t, srv)

	rec := do(srv, http.MethodDelete, sessionPath(sess.ID))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(srv, http.MethodGet, sessionPath(sess.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(srv, http.MethodDelete, sessionPath(sess.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
