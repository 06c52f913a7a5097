package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/middleware"
	"github.com/forkful/pantry-service/internal/models"
	"github.com/forkful/pantry-service/internal/service"
)

// SessionServiceMock mocks service.SessionService
type SessionServiceMock struct {
	mock.Mock
}

func (m *SessionServiceMock) StartSession(ctx context.Context, callerID string, req *models.StartSessionRequest) (*models.CookingSession, error) {
	args := m.Called(ctx, callerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CookingSession), args.Error(1)
}

func (m *SessionServiceMock) GetSession(ctx context.Context, callerID string, sessionID uuid.UUID) (*models.CookingSession, error) {
	args := m.Called(ctx, callerID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CookingSession), args.Error(1)
}

func (m *SessionServiceMock) FinishSession(ctx context.Context, callerID string, sessionID uuid.UUID, req *models.FinishSessionRequest) (*models.FinishSessionResponse, error) {
	args := m.Called(ctx, callerID, sessionID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FinishSessionResponse), args.Error(1)
}

// OrchestratorMock mocks service.ConsumptionOrchestrator
type OrchestratorMock struct {
	mock.Mock
}

func (m *OrchestratorMock) CompleteStep(ctx context.Context, cmd *service.CompleteStepCommand) (*models.CompleteStepResponse, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CompleteStepResponse), args.Error(1)
}

func setupSessionRouter(svc *SessionServiceMock, orch *OrchestratorMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewSessionHandler(svc, orch, slog.Default())

	router := gin.New()
	group := router.Group("/api/cooking")
	group.Use(middleware.RequireCaller())
	{
		group.POST("/sessions", handler.StartSession)
		group.GET("/sessions/:sessionID", handler.GetSession)
		group.POST("/sessions/:sessionID/steps/:stepID/complete", handler.CompleteStep)
		group.POST("/sessions/:sessionID/finish", handler.FinishSession)
	}
	return router
}

func doSessionRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CallerIDHeader, "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSessionHandler_StartSession(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(SessionServiceMock)
		session, err := models.NewCookingSession("user-1", "recipe-42", 4,
			models.SkillBeginner, []string{"step-1", "step-2"})
		require.NoError(t, err)
		svc.On("StartSession", mock.Anything, "user-1", mock.Anything).Return(session, nil)

		body, _ := json.Marshal(map[string]interface{}{
			"recipe_id":   "recipe-42",
			"servings":    4,
			"skill_level": "beginner",
		})
		w := doSessionRequest(setupSessionRouter(svc, new(OrchestratorMock)),
			http.MethodPost, "/api/cooking/sessions", body)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp models.SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, session.ID(), resp.ID)
		assert.True(t, resp.Running)
		assert.Len(t, resp.Steps, 2)
	})

	t.Run("unknown recipe maps to 404", func(t *testing.T) {
		svc := new(SessionServiceMock)
		svc.On("StartSession", mock.Anything, "user-1", mock.Anything).
			Return(nil, apperrors.NewNotFoundError("recipe", "recipe-99"))

		body, _ := json.Marshal(map[string]interface{}{
			"recipe_id":   "recipe-99",
			"servings":    4,
			"skill_level": "beginner",
		})
		w := doSessionRequest(setupSessionRouter(svc, new(OrchestratorMock)),
			http.MethodPost, "/api/cooking/sessions", body)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing fields rejected before the service", func(t *testing.T) {
		w := doSessionRequest(setupSessionRouter(new(SessionServiceMock), new(OrchestratorMock)),
			http.MethodPost, "/api/cooking/sessions", []byte(`{"recipe_id":"recipe-42"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionHandler_CompleteStep(t *testing.T) {
	sessionID := uuid.New()
	path := "/api/cooking/sessions/" + sessionID.String() + "/steps/step-1/complete"

	t.Run("passes the command through", func(t *testing.T) {
		orch := new(OrchestratorMock)
		batchID := uuid.New()
		orch.On("CompleteStep", mock.Anything, mock.MatchedBy(func(cmd *service.CompleteStepCommand) bool {
			return cmd.SessionID == sessionID && cmd.StepID == "step-1" &&
				cmd.CallerID == "user-1" && len(cmd.Consumptions) == 1
		})).Return(&models.CompleteStepResponse{
			SessionID: sessionID,
			StepID:    "step-1",
			Status:    string(models.StepStatusDone),
			Results:   []models.BatchQuantityResult{{BatchID: batchID, NewQuantity: 300}},
		}, nil)

		body, _ := json.Marshal(map[string]interface{}{
			"consumptions": []map[string]interface{}{
				{"ingredient_id": "chicken_breast", "batch_id": batchID, "quantity": 200, "unit": "g"},
			},
		})
		w := doSessionRequest(setupSessionRouter(new(SessionServiceMock), orch),
			http.MethodPost, path, body)

		assert.Equal(t, http.StatusOK, w.Code)
		orch.AssertExpectations(t)
	})

	t.Run("insufficient quantity maps to 422", func(t *testing.T) {
		orch := new(OrchestratorMock)
		orch.On("CompleteStep", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewInsufficientQuantityError(uuid.NewString(), 100, 150, "g"))

		w := doSessionRequest(setupSessionRouter(new(SessionServiceMock), orch),
			http.MethodPost, path, []byte(`{}`))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "insufficient_quantity", resp.Error)
	})

	t.Run("forbidden batch maps to 403", func(t *testing.T) {
		orch := new(OrchestratorMock)
		orch.On("CompleteStep", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewForbiddenError("batch", uuid.NewString()))

		w := doSessionRequest(setupSessionRouter(new(SessionServiceMock), orch),
			http.MethodPost, path, []byte(`{}`))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("negative quantity rejected before the orchestrator", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"consumptions": []map[string]interface{}{
				{"ingredient_id": "onion", "batch_id": uuid.New(), "quantity": -1, "unit": "pcs"},
			},
		})
		w := doSessionRequest(setupSessionRouter(new(SessionServiceMock), new(OrchestratorMock)),
			http.MethodPost, path, body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionHandler_FinishSession(t *testing.T) {
	sessionID := uuid.New()
	path := "/api/cooking/sessions/" + sessionID.String() + "/finish"

	t.Run("finished session maps to 409", func(t *testing.T) {
		svc := new(SessionServiceMock)
		svc.On("FinishSession", mock.Anything, "user-1", sessionID, mock.Anything).
			Return(nil, apperrors.NewInvalidStateError("session", sessionID.String(), "session already finished"))

		w := doSessionRequest(setupSessionRouter(svc, new(OrchestratorMock)),
			http.MethodPost, path, []byte(`{}`))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
