package models

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/forkful/pantry-service/internal/errors"
)

// StepStatus represents the status of one cooking step
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusDone    StepStatus = "done"
	StepStatusSkipped StepStatus = "skipped"
)

// StepConsumption is an immutable record of quantity taken from one batch
// while completing a step. Records are appended, never mutated.
type StepConsumption struct {
	IngredientID string    `json:"ingredient_id"`
	BatchID      uuid.UUID `json:"batch_id"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
}

// CookingStep is one step of a cooking session. Steps are pre-created at
// session start, one per recipe step.
type CookingStep struct {
	ID           string            `json:"id"`
	Status       StepStatus        `json:"status"`
	Timer        *time.Duration    `json:"timer,omitempty"`
	Consumptions []StepConsumption `json:"consumptions,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// SkillLevel of the cook running a session
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
)

// minServingsForLeftovers is the threshold below which finishing a session
// produces no leftover suggestion.
const minServingsForLeftovers = 2

// CookingSession is a multi-step workflow instance referencing a recipe.
// It is RUNNING until Finish is called, one-way, no re-opening.
type CookingSession struct {
	id         uuid.UUID
	ownerID    string
	recipeID   string
	servings   int
	skillLevel SkillLevel
	startedAt  time.Time
	finishedAt *time.Time
	steps      []CookingStep
	notes      string
	photoRef   string
}

// NewCookingSession creates a running session with one pending step per
// supplied step id.
func NewCookingSession(ownerID, recipeID string, servings int, skillLevel SkillLevel, stepIDs []string) (*CookingSession, error) {
	if ownerID == "" {
		return nil, apperrors.NewValidationError("owner_id cannot be empty")
	}
	if recipeID == "" {
		return nil, apperrors.NewValidationError("recipe_id cannot be empty")
	}
	if servings <= 0 {
		return nil, apperrors.NewValidationError("servings must be positive")
	}
	if len(stepIDs) == 0 {
		return nil, apperrors.NewValidationError("session must have at least one step")
	}

	steps := make([]CookingStep, 0, len(stepIDs))
	for _, id := range stepIDs {
		steps = append(steps, CookingStep{ID: id, Status: StepStatusPending})
	}

	return &CookingSession{
		id:         uuid.New(),
		ownerID:    ownerID,
		recipeID:   recipeID,
		servings:   servings,
		skillLevel: skillLevel,
		startedAt:  time.Now().UTC(),
		steps:      steps,
	}, nil
}

func (s *CookingSession) ID() uuid.UUID          { return s.id }
func (s *CookingSession) OwnerID() string        { return s.ownerID }
func (s *CookingSession) RecipeID() string       { return s.recipeID }
func (s *CookingSession) Servings() int          { return s.servings }
func (s *CookingSession) SkillLevel() SkillLevel { return s.skillLevel }
func (s *CookingSession) StartedAt() time.Time   { return s.startedAt }
func (s *CookingSession) FinishedAt() *time.Time { return s.finishedAt }
func (s *CookingSession) Notes() string          { return s.notes }
func (s *CookingSession) PhotoRef() string       { return s.photoRef }

// Steps returns a copy of the session's steps.
func (s *CookingSession) Steps() []CookingStep {
	out := make([]CookingStep, len(s.steps))
	copy(out, s.steps)
	return out
}

// IsRunning reports whether the session has not been finished yet.
func (s *CookingSession) IsRunning() bool {
	return s.finishedAt == nil
}

// CompleteStep marks a pending step as done and appends its consumptions.
// The step id must already exist on the session.
func (s *CookingSession) CompleteStep(stepID string, timer *time.Duration, consumptions []StepConsumption) (*CookingStep, error) {
	if !s.IsRunning() {
		return nil, apperrors.NewInvalidStateError("session", s.id.String(),
			"cannot complete a step of a finished session")
	}

	for i := range s.steps {
		if s.steps[i].ID != stepID {
			continue
		}
		if s.steps[i].Status == StepStatusDone {
			return nil, apperrors.NewInvalidStateError("step", stepID,
				"step is already done")
		}
		now := time.Now().UTC()
		s.steps[i].Status = StepStatusDone
		s.steps[i].Timer = timer
		s.steps[i].Consumptions = append(s.steps[i].Consumptions, consumptions...)
		s.steps[i].CompletedAt = &now
		step := s.steps[i]
		return &step, nil
	}

	return nil, apperrors.NewNotFoundError("step", stepID)
}

// SkipStep marks a pending step as skipped.
func (s *CookingSession) SkipStep(stepID string) error {
	if !s.IsRunning() {
		return apperrors.NewInvalidStateError("session", s.id.String(),
			"cannot skip a step of a finished session")
	}
	for i := range s.steps {
		if s.steps[i].ID != stepID {
			continue
		}
		if s.steps[i].Status != StepStatusPending {
			return apperrors.NewInvalidStateError("step", stepID,
				"only pending steps can be skipped")
		}
		s.steps[i].Status = StepStatusSkipped
		return nil
	}
	return apperrors.NewNotFoundError("step", stepID)
}

// Finish closes the session. finished_at is set at most once.
func (s *CookingSession) Finish(notes, photoRef string) error {
	if !s.IsRunning() {
		return apperrors.NewInvalidStateError("session", s.id.String(),
			"session is already finished")
	}
	now := time.Now().UTC()
	s.finishedAt = &now
	s.notes = notes
	s.photoRef = photoRef
	return nil
}

// AllConsumptions flattens the consumptions of all done steps.
func (s *CookingSession) AllConsumptions() []StepConsumption {
	var out []StepConsumption
	for _, step := range s.steps {
		if step.Status == StepStatusDone {
			out = append(out, step.Consumptions...)
		}
	}
	return out
}

// TotalCookingTime returns the wall-clock session duration, nil while the
// session is still running.
func (s *CookingSession) TotalCookingTime() *time.Duration {
	if s.finishedAt == nil {
		return nil
	}
	d := s.finishedAt.Sub(s.startedAt)
	return &d
}

// LeftoverPortions suggests how many leftover portions a finished session
// likely produced: servings minus two, and zero at or below two servings.
func (s *CookingSession) LeftoverPortions() int {
	if s.servings <= minServingsForLeftovers {
		return 0
	}
	return s.servings - minServingsForLeftovers
}

// SessionSnapshot is the persisted form of a cooking session. The steps
// slice is stored as a single JSON document alongside the session row.
type SessionSnapshot struct {
	ID         uuid.UUID     `json:"id"`
	OwnerID    string        `json:"owner_id"`
	RecipeID   string        `json:"recipe_id"`
	Servings   int           `json:"servings"`
	SkillLevel SkillLevel    `json:"skill_level"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Steps      []CookingStep `json:"steps"`
	Notes      string        `json:"notes,omitempty"`
	PhotoRef   string        `json:"photo_ref,omitempty"`
}

// Snapshot captures the session for persistence.
func (s *CookingSession) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:         s.id,
		OwnerID:    s.ownerID,
		RecipeID:   s.recipeID,
		Servings:   s.servings,
		SkillLevel: s.skillLevel,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
		Steps:      s.Steps(),
		Notes:      s.notes,
		PhotoRef:   s.photoRef,
	}
}

// RehydrateSession reconstructs a session from its persisted snapshot. It
// is intended for the storage layer only.
func RehydrateSession(snap SessionSnapshot) *CookingSession {
	steps := make([]CookingStep, len(snap.Steps))
	copy(steps, snap.Steps)
	return &CookingSession{
		id:         snap.ID,
		ownerID:    snap.OwnerID,
		recipeID:   snap.RecipeID,
		servings:   snap.Servings,
		skillLevel: snap.SkillLevel,
		startedAt:  snap.StartedAt,
		finishedAt: snap.FinishedAt,
		steps:      steps,
		notes:      snap.Notes,
		photoRef:   snap.PhotoRef,
	}
}
