package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/forkful/pantry-service/internal/errors"
	"github.com/forkful/pantry-service/internal/models"
	"github.com/forkful/pantry-service/internal/recipes"
)

// sessionService implements SessionService
type sessionService struct {
	deps    *ServiceDependencies
	recipes recipes.RecipeLookup
}

// NewSessionService creates a new session service
func NewSessionService(deps *ServiceDependencies, lookup recipes.RecipeLookup) SessionService {
	return &sessionService{deps: deps, recipes: lookup}
}

// StartSession creates a running session with one pending step per recipe
// step, pre-populated from the recipe lookup collaborator.
func (s *sessionService) StartSession(ctx context.Context, callerID string, req *models.StartSessionRequest) (*models.CookingSession, error) {
	if err := models.ValidateStartSessionRequest(req); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	stepIDs, err := s.recipes.StepIDs(ctx, req.RecipeID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up recipe %s", req.RecipeID)
	}
	if len(stepIDs) == 0 {
		return nil, apperrors.NewNotFoundError("recipe", req.RecipeID)
	}

	session, err := models.NewCookingSession(callerID, req.RecipeID, req.Servings,
		models.SkillLevel(req.SkillLevel), stepIDs)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Repositories.Session.CreateSession(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	s.deps.Logger.Info("cooking session started",
		"session_id", session.ID(),
		"recipe_id", req.RecipeID,
		"steps", len(stepIDs))

	return session, nil
}

// GetSession returns a session owned by the caller. Another owner's session
// is reported as not found.
func (s *sessionService) GetSession(ctx context.Context, callerID string, sessionID uuid.UUID) (*models.CookingSession, error) {
	session, err := s.deps.Repositories.Session.GetSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	if session == nil || session.OwnerID() != callerID {
		return nil, apperrors.NewNotFoundError("session", sessionID.String())
	}
	return session, nil
}

// FinishSession closes a running session and suggests leftover portions.
func (s *sessionService) FinishSession(ctx context.Context, callerID string, sessionID uuid.UUID, req *models.FinishSessionRequest) (*models.FinishSessionResponse, error) {
	session, err := s.GetSession(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := session.Finish(req.Notes, req.PhotoRef); err != nil {
		return nil, err
	}

	if err := s.deps.Repositories.Session.SaveSession(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to save session")
	}

	total := session.TotalCookingTime()

	s.deps.Logger.Info("cooking session finished",
		"session_id", sessionID,
		"total_seconds", int64(total.Seconds()),
		"leftover_portions", session.LeftoverPortions())

	return &models.FinishSessionResponse{
		SessionID:        sessionID,
		FinishedAt:       *session.FinishedAt(),
		TotalSeconds:     int64(total.Seconds()),
		LeftoverPortions: session.LeftoverPortions(),
	}, nil
}
