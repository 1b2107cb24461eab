package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/sentinel"
	"github.com/giantswarm/sentinel/internal/testutil"
)

func newTestAPI(t *testing.T) (*sentinel.Sentinel, http.Handler) {
	t.Helper()
	cfg := sentinel.DefaultConfig()
	cfg.Activity.Mirror = false
	cfg.Detection.MaxFailedLogins = 2

	s, err := sentinel.New(cfg, testutil.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s, newAPIRouter(s, testutil.DiscardLogger())
}

func call(h http.Handler, method, target, remoteAddr string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.RemoteAddr = remoteAddr
	req.Header.Set("User-Agent", "api-test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPI_LoginAndSession(t *testing.T) {
	s, h := newTestAPI(t)

	rec := call(h, http.MethodPost, "/v1/login", "203.0.113.20:4000", loginRequest{UserID: "alice", UserRole: "admin", Success: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res sentinel.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Allowed)
	require.NotNil(t, res.Session)
	assert.Equal(t, "203.0.113.20", res.Session.IPAddress)
	assert.Equal(t, "api-test", res.Session.UserAgent)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, s.Config().Sessions.Cookie.Name, cookies[0].Name)
	assert.Equal(t, res.Session.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	path := "/v1/sessions/alice/" + res.Session.ID
	rec = call(h, http.MethodGet, path, "203.0.113.20:4000", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(h, http.MethodPut, path+"/metadata", "203.0.113.20:4000", metadataRequest{Key: "tenant", Value: "acme"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(h, http.MethodDelete, path, "203.0.113.20:4000", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(h, http.MethodGet, path, "203.0.113.20:4000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_LoginFailures(t *testing.T) {
	s, h := newTestAPI(t)

	rec := call(h, http.MethodPost, "/v1/login", "203.0.113.21:4000", loginRequest{UserID: "bob"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(h, http.MethodPost, "/v1/login", "203.0.113.21:4000", loginRequest{UserID: "bob"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var res sentinel.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Threats, 2)

	s.Detector().BlockIP("203.0.113.21", "test")
	rec = call(h, http.MethodPost, "/v1/login", "203.0.113.21:4000", loginRequest{UserID: "bob", Success: true})
	assert.Equal(t, http.StatusForbidden, rec.Code, "blocked by the middleware before the handler")

	rec = call(h, http.MethodPost, "/v1/login", "203.0.113.22:4000", loginRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = call(h, http.MethodPost, "/v1/login", "203.0.113.22:4000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Access(t *testing.T) {
	_, h := newTestAPI(t)

	rec := call(h, http.MethodPost, "/v1/access", "203.0.113.23:4000", accessRequest{UserID: "carol", Resource: "/admin", RequiredRole: "admin", ActualRole: "user"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"granted":false}`, rec.Body.String())

	rec = call(h, http.MethodPost, "/v1/access", "203.0.113.23:4000", accessRequest{UserID: "dave", Resource: "/admin", RequiredRole: "admin", ActualRole: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"granted":true}`, rec.Body.String())
}

func TestAPI_SuspiciousPath(t *testing.T) {
	_, h := newTestAPI(t)

	rec := call(h, http.MethodGet, "/v1/sessions/x/y?q=%3Cscript%3E", "203.0.113.24:4000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
