// ABOUTME: Handler tests for the HTTP facade
// ABOUTME: Exercises routes against stubbed controller and sender surfaces

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/wabridge/internal/logbuf"
	"github.com/2389/wabridge/internal/manager"
)

type stubController struct {
	snapshot  manager.Snapshot
	pairPhone string
	pairErr   error
	resets    int
	resetErr  error
}

func (c *stubController) Snapshot() manager.Snapshot { return c.snapshot }

func (c *stubController) Pair(ctx context.Context, phone string) error {
	c.pairPhone = phone
	return c.pairErr
}

func (c *stubController) Reset(ctx context.Context) error {
	c.resets++
	return c.resetErr
}

type stubSender struct {
	to, text string
	err      error
}

func (s *stubSender) Send(ctx context.Context, to, text string) error {
	if s.err != nil {
		return s.err
	}
	s.to, s.text = to, text
	return nil
}

func newTestServer(cfg Config, ctrl Controller, sender Sender, logs *logbuf.Buffer) *Server {
	if logs == nil {
		logs = logbuf.New(10)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, ctrl, sender, logs, logger)
}

func doRequest(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got), "body: %s", rec.Body.String())
	return got
}

func TestHealthReportsConnectionStatus(t *testing.T) {
	ctrl := &stubController{snapshot: manager.Snapshot{Status: manager.StatusConnected}}
	srv := newTestServer(Config{}, ctrl, &stubSender{}, nil)

	rec := doRequest(srv.Handler(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody(t, rec)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "connected", got["whatsapp"])
}

func TestQRWhileScanning(t *testing.T) {
	ctrl := &stubController{snapshot: manager.Snapshot{
		Status:    manager.StatusScanning,
		QRDataURL: "data:image/png;base64,abc",
	}}
	srv := newTestServer(Config{}, ctrl, &stubSender{}, nil)

	rec := doRequest(srv.Handler(), http.MethodGet, "/qr", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody(t, rec)
	assert.Equal(t, "scanning", got["status"])
	assert.Equal(t, "data:image/png;base64,abc", got["qr"])
	_, hasCode := got["pairingCode"]
	assert.False(t, hasCode, "pairingCode must be omitted while scanning")
}

func TestQRWhilePairing(t *testing.T) {
	ctrl := &stubController{snapshot: manager.Snapshot{
		Status:      manager.StatusPairing,
		PairingCode: "ABCD-1234",
	}}
	srv := newTestServer(Config{}, ctrl, &stubSender{}, nil)

	rec := doRequest(srv.Handler(), http.MethodGet, "/qr", "", nil)
	got := decodeBody(t, rec)
	assert.Equal(t, "pairing", got["status"])
	assert.Equal(t, "ABCD-1234", got["pairingCode"])
	_, hasQR := got["qr"]
	assert.False(t, hasQR, "qr must be omitted while pairing")
}

func TestLogsReturnsBufferedLines(t *testing.T) {
	logs := logbuf.New(10)
	logs.Append("Connecting to WhatsApp...")
	srv := newTestServer(Config{}, &stubController{}, &stubSender{}, logs)

	rec := doRequest(srv.Handler(), http.MethodGet, "/logs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Logs []string `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Logs, 1)
	assert.Contains(t, got.Logs[0], "Connecting to WhatsApp...")
}

func TestStatusPageRenders(t *testing.T) {
	ctrl := &stubController{snapshot: manager.Snapshot{
		Status:    manager.StatusScanning,
		QRDataURL: "data:image/png;base64,abc",
	}}
	logs := logbuf.New(10)
	logs.Append("QR code updated")
	srv := newTestServer(Config{}, ctrl, &stubSender{}, logs)

	rec := doRequest(srv.Handler(), http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "scanning")
	assert.Contains(t, body, "data:image/png;base64,abc")
	assert.Contains(t, body, "QR code updated")
}

func TestStatusPageRejectsOtherPaths(t *testing.T) {
	srv := newTestServer(Config{}, &stubController{}, &stubSender{}, nil)
	rec := doRequest(srv.Handler(), http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPairNormalizesPhoneNumber(t *testing.T) {
	ctrl := &stubController{}
	srv := newTestServer(Config{}, ctrl, &stubSender{}, nil)

	rec := doRequest(srv.Handler(), http.MethodPost, "/pair",
		`{"phoneNumber":"+1 (555) 000-1111"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "15550001111", ctrl.pairPhone)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestPairRejectsMissingPhone(t *testing.T) {
	srv := newTestServer(Config{}, &stubController{}, &stubSender{}, nil)

	for _, body := range []string{`{}`, `{"phoneNumber":"no digits"}`, `not json`} {
		rec := doRequest(srv.Handler(), http.MethodPost, "/pair", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestPairReportsControllerFailure(t *testing.T) {
	ctrl := &stubController{pairErr: errors.New("store unavailable")}
	srv := newTestServer(Config{}, ctrl, &stubSender{}, nil)

	rec := doRequest(srv.Handler(), http.MethodPost, "/pair",
		`{"phoneNumber":"15550001111"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResetInvokesController(t *testing.T) {
	ctrl := &stubController{}
	srv := newTestServer(Config{}, ctrl, &stubSender{}, nil)

	rec := doRequest(srv.Handler(), http.MethodGet, "/reset", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ctrl.resets)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestSendDeliversMessage(t *testing.T) {
	sender := &stubSender{}
	srv := newTestServer(Config{}, &stubController{}, sender, nil)

	rec := doRequest(srv.Handler(), http.MethodPost, "/send",
		`{"to":"15550001111","text":"hello"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "15550001111", sender.to)
	assert.Equal(t, "hello", sender.text)
}

func TestSendValidation(t *testing.T) {
	srv := newTestServer(Config{}, &stubController{}, &stubSender{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing to", `{"text":"hello"}`},
		{"missing text", `{"to":"15550001111"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv.Handler(), http.MethodPost, "/send", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	sender := &stubSender{err: manager.ErrNotConnected}
	srv := newTestServer(Config{}, &stubController{}, sender, nil)

	rec := doRequest(srv.Handler(), http.MethodPost, "/send",
		`{"to":"15550001111","text":"hello"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not connected", decodeBody(t, rec)["error"])
}

func TestSendReportsOtherFailures(t *testing.T) {
	sender := &stubSender{err: errors.New("engine exploded")}
	srv := newTestServer(Config{}, &stubController{}, sender, nil)

	rec := doRequest(srv.Handler(), http.MethodPost, "/send",
		`{"to":"15550001111","text":"hello"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthGuardsMutatingEndpoints(t *testing.T) {
	ctrl := &stubController{}
	srv := newTestServer(Config{JWTSecret: "sekrit"}, ctrl, &stubSender{}, nil)
	h := srv.Handler()

	// No token.
	rec := doRequest(h, http.MethodGet, "/reset", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, ctrl.resets)

	// Wrong secret.
	rec = doRequest(h, http.MethodGet, "/reset", "", map[string]string{
		"Authorization": "Bearer " + signToken(t, "wrong"),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, ctrl.resets)

	// Valid token.
	rec = doRequest(h, http.MethodGet, "/reset", "", map[string]string{
		"Authorization": "Bearer " + signToken(t, "sekrit"),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ctrl.resets)
}

func TestAuthLeavesReadEndpointsOpen(t *testing.T) {
	srv := newTestServer(Config{JWTSecret: "sekrit"}, &stubController{}, &stubSender{}, nil)
	h := srv.Handler()

	for _, path := range []string{"/", "/qr", "/logs", "/health"} {
		rec := doRequest(h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	ctrl := &stubController{}
	srv := newTestServer(Config{}, ctrl, &stubSender{}, nil)

	rec := doRequest(srv.Handler(), http.MethodGet, "/reset", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(Config{}, &stubController{}, &stubSender{}, nil)

	rec := doRequest(srv.Handler(), http.MethodOptions, "/send", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
