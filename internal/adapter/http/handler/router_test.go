package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"token-launch-gateway/internal/adapter/http/middleware"
	redisStore "token-launch-gateway/internal/adapter/storage/redis"
	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/internal/core/ports/mocks"
	"token-launch-gateway/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	frontAccessKey = "ak_front"
	frontSecret    = "front-secret"
)

type routerFixture struct {
	engine    *gin.Engine
	workflow  *mocks.MockWorkflowService
	reporting *mocks.MockReportingService
	ops       *mocks.MockOperationsService
	audit     *mocks.MockAuditService
	tokens    *service.JWTTokenService
	sig       *service.HMACSignatureService
}

func setupRouter(t *testing.T) *routerFixture {
	ctrl := gomock.NewController(t)
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := &routerFixture{
		workflow:  mocks.NewMockWorkflowService(ctrl),
		reporting: mocks.NewMockReportingService(ctrl),
		ops:       mocks.NewMockOperationsService(ctrl),
		audit:     mocks.NewMockAuditService(ctrl),
		tokens:    service.NewJWTTokenService("jwt-secret-for-tests-only-32bytes!", time.Hour, "test"),
		sig:       service.NewHMACSignatureService(),
	}
	f.engine = SetupRouter(RouterDeps{
		WorkflowSvc:    f.workflow,
		ReferralSvc:    mocks.NewMockReferralService(ctrl),
		AuthSvc:        mocks.NewMockAuthService(ctrl),
		ReportingSvc:   f.reporting,
		OperationsSvc:  f.ops,
		SigSvc:         f.sig,
		NonceStore:     redisStore.NewNonceStore(rdb),
		TokenSvc:       f.tokens,
		Frontend:       middleware.FrontendCredentials{AccessKey: frontAccessKey, SecretKey: frontSecret, MaxSkew: time.Minute},
		ReplayCache:    redisStore.NewReplayCache(rdb),
		RateLimitStore: redisStore.NewRateLimitStore(rdb),
		AuditSvc:       f.audit,
		ReservationTTL: time.Minute,
		Mode:           gin.TestMode,
		Logger:         zerolog.Nop(),
	})
	return f
}

func (f *routerFixture) signed(method, path string, body []byte, requestID string) *http.Request {
	ts := time.Now().Unix()
	nonce := uuid.NewString()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAccessKey, frontAccessKey)
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, nonce)
	req.Header.Set(middleware.HeaderSignature, f.sig.Sign(frontSecret, f.sig.BuildCanonicalString(method, path, ts, nonce, body)))
	if requestID != "" {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}
	return req
}

func (f *routerFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestRouter_SignedSessionCreate(t *testing.T) {
	f := setupRouter(t)
	f.workflow.EXPECT().OnDraftReady(gomock.Any(), gomock.Any()).Return(testSession(), nil)

	body, _ := json.Marshal(draftRequest())
	w := f.serve(f.signed(http.MethodPost, "/api/v1/sessions", body, ""))

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_RejectsUnsignedAndTampered(t *testing.T) {
	f := setupRouter(t)

	body, _ := json.Marshal(draftRequest())
	unsigned := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(body))
	assert.Equal(t, http.StatusUnauthorized, f.serve(unsigned).Code)

	req := f.signed(http.MethodPost, "/api/v1/sessions", body, "")
	req.Body = io.NopCloser(bytes.NewReader([]byte(`{"session_id":"other"}`)))
	assert.Equal(t, http.StatusUnauthorized, f.serve(req).Code)
}

func TestRouter_PaymentCheckReplay(t *testing.T) {
	f := setupRouter(t)
	f.workflow.EXPECT().OnPaymentCheckRequested(gomock.Any(), "chat-42").
		Return(&domain.CheckOutcome{SessionID: "chat-42", Result: domain.CheckNotFound}, nil).Times(1)

	path := "/api/v1/sessions/chat-42/payment-check"
	first := f.serve(f.signed(http.MethodPost, path, nil, "update-9"))
	second := f.serve(f.signed(http.MethodPost, path, nil, "update-9"))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(middleware.HeaderReplayed))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	f := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, f.serve(req).Code)

	token, _, err := f.tokens.Generate("alice")
	require.NoError(t, err)
	f.reporting.EXPECT().Stats(gomock.Any()).Return(&ports.Stats{
		Transactions: map[domain.TxState]int{domain.TxStateCreated: 2},
	}, nil)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := f.serve(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":2`)
}

func TestRouter_AdminResetIsAudited(t *testing.T) {
	f := setupRouter(t)
	token, _, err := f.tokens.Generate("alice")
	require.NoError(t, err)

	f.ops.EXPECT().ResetTransaction(gomock.Any(), "sig1").Return(nil)
	var logged *domain.AuditLog
	f.audit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		logged = entry
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/transactions/sig1/reset", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := f.serve(req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, logged)
	assert.Equal(t, domain.AuditActionResetTx, logged.Action)
	assert.Equal(t, "alice", logged.Operator)
	assert.Equal(t, "sig1", logged.ResourceID)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	f := setupRouter(t)
	assert.Equal(t, http.StatusOK, f.serve(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
