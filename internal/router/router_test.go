package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespl/caseflow-api/internal/clock"
	caseflowhandler "github.com/vespl/caseflow-api/internal/handler/caseflow"
	documenthandler "github.com/vespl/caseflow-api/internal/handler/document"
	notificationhandler "github.com/vespl/caseflow-api/internal/handler/notification"
	"github.com/vespl/caseflow-api/internal/middleware"
	"github.com/vespl/caseflow-api/internal/repository/memory"
	"github.com/vespl/caseflow-api/internal/router"
	"github.com/vespl/caseflow-api/internal/service/caseflow"
	"github.com/vespl/caseflow-api/internal/service/notification"
	"github.com/vespl/caseflow-api/internal/service/sequence"
	"github.com/vespl/caseflow-api/pkg/auth"
	"github.com/vespl/caseflow-api/pkg/logger"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	store := memory.NewStore()
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))

	seqSvc := sequence.NewService(store.Sequences(), clk, "VESPL", nil)
	caseSvc := caseflow.NewService(store.Cases(), store.Transitions(), seqSvc, nil, clk, log)
	notifySvc := notification.NewService(store.Queue(), store.Templates(), clk, log, nil)

	authMw := middleware.NewAuthMiddleware(auth.NewTokenParser(testSecret))
	r := router.NewRouter(authMw, log, router.Config{CORS: middleware.DefaultCORSConfig()},
		caseflowhandler.NewHandler(caseSvc),
		documenthandler.NewHandler(seqSvc),
		notificationhandler.NewHandler(notifySvc),
	)
	return r.Engine()
}

func signToken(t *testing.T, actorID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   actorID.String(),
		"name":  "Test Actor",
		"roles": []string{"manager"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type apiResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	h := newTestRouter(t)

	w, _ := doRequest(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	h := newTestRouter(t)

	w, _ := doRequest(t, h, http.MethodGet, "/api/v1/cases", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.New().String(),
	})
	bad, err := forged.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	w, _ = doRequest(t, h, http.MethodGet, "/api/v1/cases", bad, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	h := newTestRouter(t)
	token := signToken(t, uuid.New())

	w, resp := doRequest(t, h, http.MethodPost, "/api/v1/cases", token, map[string]interface{}{
		"title":       "conveyor refurbishment",
		"priority":    "high",
		"client_id":   uuid.New().String(),
		"assignee_id": uuid.New().String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "VESPL/EQ/2526/001", resp.Data["case_number"])
	caseID := resp.Data["id"].(string)

	// Valid transition along the pipeline.
	w, resp = doRequest(t, h, http.MethodPost, "/api/v1/cases/"+caseID+"/transitions", token, map[string]interface{}{
		"to_state": "estimation",
		"note":     "estimate requested",
	})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	assert.Equal(t, "enquiry", resp.Data["from_state"])
	assert.Equal(t, "estimation", resp.Data["to_state"])

	// Skipping stages is a conflict, not a server error.
	w, _ = doRequest(t, h, http.MethodPost, "/api/v1/cases/"+caseID+"/transitions", token, map[string]interface{}{
		"to_state": "delivery",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = doRequest(t, h, http.MethodGet, "/api/v1/cases/"+caseID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "estimation", resp.Data["current_state"])

	// History carries the opening entry plus the one applied edge.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/"+caseID+"/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Data, 2)
}

func TestCaseNotFoundOverHTTP(t *testing.T) {
	h := newTestRouter(t)
	token := signToken(t, uuid.New())

	w, _ := doRequest(t, h, http.MethodGet, "/api/v1/cases/"+uuid.New().String(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentNumberOverHTTP(t *testing.T) {
	h := newTestRouter(t)
	token := signToken(t, uuid.New())

	w, resp := doRequest(t, h, http.MethodPost, "/api/v1/documents/numbers", token, map[string]interface{}{
		"document_type": "QUOTATION",
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)
	assert.Equal(t, "VESPL/QT/2526/001", resp.Data["number"])

	w, _ = doRequest(t, h, http.MethodPost, "/api/v1/documents/numbers", token, map[string]interface{}{
		"document_type": "RECEIPT",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestManualNotificationOverHTTP(t *testing.T) {
	h := newTestRouter(t)
	token := signToken(t, uuid.New())

	body := map[string]interface{}{
		"template_code":  "sla_warning_2h",
		"recipient_role": "manager",
		"dedup_minutes":  60,
		"context":        map[string]interface{}{"case_number": "VESPL/EQ/2526/001"},
	}

	w, resp := doRequest(t, h, http.MethodPost, "/api/v1/notifications", token, body)
	require.Equal(t, http.StatusAccepted, w.Code, resp.Message)
	assert.Equal(t, true, resp.Data["enqueued"])

	// The same tuple inside the window reports a suppressed enqueue.
	w, resp = doRequest(t, h, http.MethodPost, "/api/v1/notifications", token, body)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, false, resp.Data["enqueued"])
}
