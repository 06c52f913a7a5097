package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/middleware"
	"github.com/forkful/pantry-service/internal/models"
)

// PantryServiceMock mocks service.PantryService
type PantryServiceMock struct {
	mock.Mock
}

func (m *PantryServiceMock) AddBatch(ctx context.Context, callerID string, req *models.AddBatchRequest) (*models.Batch, error) {
	args := m.Called(ctx, callerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Batch), args.Error(1)
}

func (m *PantryServiceMock) GetBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
	args := m.Called(ctx, callerID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Batch), args.Error(1)
}

func (m *PantryServiceMock) ListBatches(ctx context.Context, callerID string) ([]*models.BatchResponse, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BatchResponse), args.Error(1)
}

func (m *PantryServiceMock) ReserveBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
	args := m.Called(ctx, callerID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Batch), args.Error(1)
}

func (m *PantryServiceMock) FreezeBatch(ctx context.Context, callerID string, batchID uuid.UUID, newExpiry time.Time) (*models.Batch, error) {
	args := m.Called(ctx, callerID, batchID, newExpiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Batch), args.Error(1)
}

func (m *PantryServiceMock) QuarantineBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
	args := m.Called(ctx, callerID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Batch), args.Error(1)
}

func (m *PantryServiceMock) DiscardBatch(ctx context.Context, callerID string, batchID uuid.UUID) (*models.Batch, error) {
	args := m.Called(ctx, callerID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Batch), args.Error(1)
}

func (m *PantryServiceMock) FindFEFO(ctx context.Context, callerID, ingredientID string) ([]*models.Batch, error) {
	args := m.Called(ctx, callerID, ingredientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Batch), args.Error(1)
}

func (m *PantryServiceMock) FindExpiringSoon(ctx context.Context, callerID string, withinDays int, storage models.StorageLocation) ([]*models.BatchResponse, error) {
	args := m.Called(ctx, callerID, withinDays, storage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BatchResponse), args.Error(1)
}

func setupPantryRouter(svc *PantryServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewPantryHandler(svc, slog.Default())

	router := gin.New()
	group := router.Group("/api/pantry")
	group.Use(middleware.RequireCaller())
	{
		group.GET("/batches", handler.ListBatches)
		group.POST("/batches", handler.AddBatch)
		group.GET("/batches/:batchID", handler.GetBatch)
		group.POST("/batches/:batchID/reserve", handler.ReserveBatch)
		group.POST("/batches/:batchID/freeze", handler.FreezeBatch)
		group.POST("/batches/:batchID/discard", handler.DiscardBatch)
		group.GET("/fefo", handler.FindFEFO)
		group.GET("/expiring", handler.FindExpiringSoon)
	}
	return router
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CallerIDHeader, "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testBatch(t *testing.T) *models.Batch {
	t.Helper()
	b, err := models.NewBatch("user-1", "chicken_breast", 500, "g",
		models.StorageFridge, models.LabelUseBy, time.Now().Add(72*time.Hour), false)
	require.NoError(t, err)
	return b
}

func TestPantryHandler_AddBatch(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(PantryServiceMock)
		batch := testBatch(t)
		svc.On("AddBatch", mock.Anything, "user-1", mock.Anything).Return(batch, nil)

		body, _ := json.Marshal(map[string]interface{}{
			"ingredient_id": "chicken_breast",
			"quantity":      500,
			"unit":          "g",
			"storage":       "fridge",
			"label":         "use_by",
			"expires_at":    time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		})
		w := doRequest(setupPantryRouter(svc), http.MethodPost, "/api/pantry/batches", body)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp models.BatchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, batch.ID(), resp.ID)
		svc.AssertExpectations(t)
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		svc := new(PantryServiceMock)
		svc.On("AddBatch", mock.Anything, "user-1", mock.Anything).
			Return(nil, apperrors.NewValidationError("invalid storage location"))

		body, _ := json.Marshal(map[string]interface{}{
			"ingredient_id": "chicken_breast",
			"quantity":      500,
			"unit":          "g",
			"storage":       "garage",
			"label":         "use_by",
			"expires_at":    time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		})
		w := doRequest(setupPantryRouter(svc), http.MethodPost, "/api/pantry/batches", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing caller header is rejected", func(t *testing.T) {
		router := setupPantryRouter(new(PantryServiceMock))
		req := httptest.NewRequest(http.MethodGet, "/api/pantry/batches", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPantryHandler_GetBatch(t *testing.T) {
	t.Run("not found maps to 404", func(t *testing.T) {
		svc := new(PantryServiceMock)
		batchID := uuid.New()
		svc.On("GetBatch", mock.Anything, "user-1", batchID).
			Return(nil, apperrors.NewNotFoundError("batch", batchID.String()))

		w := doRequest(setupPantryRouter(svc), http.MethodGet, "/api/pantry/batches/"+batchID.String(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id maps to 400", func(t *testing.T) {
		w := doRequest(setupPantryRouter(new(PantryServiceMock)), http.MethodGet, "/api/pantry/batches/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPantryHandler_Transitions(t *testing.T) {
	t.Run("illegal transition maps to 409", func(t *testing.T) {
		svc := new(PantryServiceMock)
		batchID := uuid.New()
		svc.On("ReserveBatch", mock.Anything, "user-1", batchID).
			Return(nil, apperrors.NewInvalidStateError("batch", batchID.String(), "cannot reserve batch in state RESERVED"))

		w := doRequest(setupPantryRouter(svc), http.MethodPost,
			"/api/pantry/batches/"+batchID.String()+"/reserve", nil)

		assert.Equal(t, http.StatusConflict, w.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_state", resp.Error)
	})

	t.Run("freeze requires a new expiry", func(t *testing.T) {
		w := doRequest(setupPantryRouter(new(PantryServiceMock)), http.MethodPost,
			"/api/pantry/batches/"+uuid.NewString()+"/freeze", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("freeze passes the new expiry through", func(t *testing.T) {
		svc := new(PantryServiceMock)
		batch := testBatch(t)
		newExpiry := time.Now().Add(90 * 24 * time.Hour).UTC().Truncate(time.Second)
		svc.On("FreezeBatch", mock.Anything, "user-1", batch.ID(), mock.MatchedBy(func(ts time.Time) bool {
			return ts.Equal(newExpiry)
		})).Return(batch, nil)

		body, _ := json.Marshal(map[string]string{"new_expiry": newExpiry.Format(time.RFC3339)})
		w := doRequest(setupPantryRouter(svc), http.MethodPost,
			"/api/pantry/batches/"+batch.ID().String()+"/freeze", body)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})
}

func TestPantryHandler_FindFEFO(t *testing.T) {
	t.Run("returns batches in given order", func(t *testing.T) {
		svc := new(PantryServiceMock)
		first := testBatch(t)
		second := testBatch(t)
		svc.On("FindFEFO", mock.Anything, "user-1", "chicken_breast").
			Return([]*models.Batch{first, second}, nil)

		w := doRequest(setupPantryRouter(svc), http.MethodGet,
			"/api/pantry/fefo?ingredient_id=chicken_breast", nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			IngredientID string                  `json:"ingredient_id"`
			Batches      []*models.BatchResponse `json:"batches"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Batches, 2)
		assert.Equal(t, first.ID(), resp.Batches[0].ID)
		assert.Equal(t, second.ID(), resp.Batches[1].ID)
	})

	t.Run("malformed ingredient maps to 400", func(t *testing.T) {
		w := doRequest(setupPantryRouter(new(PantryServiceMock)), http.MethodGet,
			"/api/pantry/fefo?ingredient_id=Fresh%20Milk", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPantryHandler_FindExpiringSoon(t *testing.T) {
	t.Run("defaults the window to three days", func(t *testing.T) {
		svc := new(PantryServiceMock)
		svc.On("FindExpiringSoon", mock.Anything, "user-1", 3, models.StorageLocation("")).
			Return([]*models.BatchResponse{}, nil)

		w := doRequest(setupPantryRouter(svc), http.MethodGet, "/api/pantry/expiring", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("rejects a non-integer window", func(t *testing.T) {
		w := doRequest(setupPantryRouter(new(PantryServiceMock)), http.MethodGet,
			"/api/pantry/expiring?within_days=soon", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
