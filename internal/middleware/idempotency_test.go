package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/service"
)

type fakeIdempotencyService struct {
	cached     *service.CachedResponse
	checkErr   error
	storeCalls int
	lastStatus int
	lastBody   []byte
}

func (f *fakeIdempotencyService) Check(_ context.Context, _, _, _, _ string) (*service.CachedResponse, error) {
	return f.cached, f.checkErr
}

func (f *fakeIdempotencyService) Store(_ context.Context, _, _, _, _ string, status int, body []byte, _ time.Duration) error {
	f.storeCalls++
	f.lastStatus = status
	f.lastBody = body
	return nil
}

func (f *fakeIdempotencyService) CleanupExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func setupGuardedRouter(idem service.IdempotencyService, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	mw := NewIdempotencyMiddleware(idem, slog.Default())
	router.POST("/finish", RequireCaller(), mw.Guard("finish_session"), handler)
	return router
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"result": "done"})
}

func TestGuard_RequiresIdempotencyKey(t *testing.T) {
	router := setupGuardedRouter(&fakeIdempotencyService{}, okHandler)

	req := httptest.NewRequest(http.MethodPost, "/finish", strings.NewReader(`{}`))
	req.Header.Set(CallerIDHeader, "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_idempotency_key")
}

func TestGuard_ExecutesAndStoresFirstRequest(t *testing.T) {
	idem := &fakeIdempotencyService{}
	router := setupGuardedRouter(idem, okHandler)

	req := httptest.NewRequest(http.MethodPost, "/finish", strings.NewReader(`{"notes":"tasty"}`))
	req.Header.Set(CallerIDHeader, "user-1")
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, idem.storeCalls)
	assert.Equal(t, http.StatusOK, idem.lastStatus)
	assert.JSONEq(t, `{"result":"done"}`, string(idem.lastBody))
}

func TestGuard_ReplaysCachedResponse(t *testing.T) {
	idem := &fakeIdempotencyService{
		cached: &service.CachedResponse{
			Status: http.StatusOK,
			Body:   []byte(`{"result":"replayed"}`),
		},
	}
	executed := false
	router := setupGuardedRouter(idem, func(c *gin.Context) {
		executed = true
		okHandler(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/finish", strings.NewReader(`{"notes":"tasty"}`))
	req.Header.Set(CallerIDHeader, "user-1")
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"replayed"}`, w.Body.String())
	assert.False(t, executed, "handler must not run on replay")
	assert.Equal(t, 0, idem.storeCalls)
}

func TestGuard_RejectsKeyReuseWithDifferentBody(t *testing.T) {
	idem := &fakeIdempotencyService{
		checkErr: apperrors.NewConflictError("idempotency key already used with a different request body"),
	}
	executed := false
	router := setupGuardedRouter(idem, func(c *gin.Context) {
		executed = true
		okHandler(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/finish", strings.NewReader(`{"notes":"other"}`))
	req.Header.Set(CallerIDHeader, "user-1")
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, executed, "handler must not run on body mismatch")
}

// storingIdempotencyService keeps real records per tuple so tests can
// observe which requests share an idempotency scope.
type storingIdempotencyService struct {
	records map[string]*service.CachedResponse
	stores  int
}

func newStoringIdempotencyService() *storingIdempotencyService {
	return &storingIdempotencyService{records: make(map[string]*service.CachedResponse)}
}

func (f *storingIdempotencyService) Check(_ context.Context, key, callerID, endpoint, _ string) (*service.CachedResponse, error) {
	return f.records[key+"|"+callerID+"|"+endpoint], nil
}

func (f *storingIdempotencyService) Store(_ context.Context, key, callerID, endpoint, _ string, status int, body []byte, _ time.Duration) error {
	f.stores++
	f.records[key+"|"+callerID+"|"+endpoint] = &service.CachedResponse{
		Status: status,
		Body:   append([]byte(nil), body...),
	}
	return nil
}

func (f *storingIdempotencyService) CleanupExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func TestGuard_ScopesKeyToThePath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	idem := newStoringIdempotencyService()
	mw := NewIdempotencyMiddleware(idem, slog.Default())

	router := gin.New()
	router.POST("/sessions/:sessionID/steps/:stepID/complete",
		RequireCaller(), mw.Guard("complete_step"),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"step_id": c.Param("stepID")})
		})

	complete := func(stepID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost,
			"/sessions/abc/steps/"+stepID+"/complete", strings.NewReader(`{}`))
		req.Header.Set(CallerIDHeader, "user-1")
		req.Header.Set(IdempotencyKeyHeader, "key-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// Same key and byte-identical body against two different steps: both
	// must execute, neither replaying the other's response.
	first := complete("step-1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"step_id":"step-1"}`, first.Body.String())

	second := complete("step-2")
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"step_id":"step-2"}`, second.Body.String())
	assert.Equal(t, 2, idem.stores)

	// Retrying the same step replays the stored response.
	retry := complete("step-1")
	require.Equal(t, http.StatusOK, retry.Code)
	assert.JSONEq(t, `{"step_id":"step-1"}`, retry.Body.String())
	assert.Equal(t, 2, idem.stores)
}

func TestGuard_DoesNotStoreServerErrors(t *testing.T) {
	idem := &fakeIdempotencyService{}
	router := setupGuardedRouter(idem, func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	req := httptest.NewRequest(http.MethodPost, "/finish", strings.NewReader(`{}`))
	req.Header.Set(CallerIDHeader, "user-1")
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, idem.storeCalls)
}

func TestRequireCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", RequireCaller(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": CallerID(c)})
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("header present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(CallerIDHeader, "user-7")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"caller":"user-7"}`, w.Body.String())
	})
}
