package models

import (
	"time"

	"github.com/google/uuid"
)

// AddBatchRequest is the payload for creating a pantry batch
type AddBatchRequest struct {
	IngredientID string    `json:"ingredient_id" binding:"required"`
	Quantity     float64   `json:"quantity" binding:"required,gt=0"`
	Unit         string    `json:"unit" binding:"required"`
	Storage      string    `json:"storage" binding:"required"`
	Label        string    `json:"label" binding:"required"`
	ExpiresAt    time.Time `json:"expires_at" binding:"required"`
	Sealed       bool      `json:"sealed"`
}

// FreezeBatchRequest carries the extended expiry applied when freezing
type FreezeBatchRequest struct {
	NewExpiry time.Time `json:"new_expiry" binding:"required"`
}

// BatchResponse is the API representation of a batch
type BatchResponse struct {
	ID           uuid.UUID `json:"id"`
	IngredientID string    `json:"ingredient_id"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
	Storage      string    `json:"storage"`
	Label        string    `json:"label"`
	ExpiresAt    time.Time `json:"expires_at"`
	State        string    `json:"state"`
	Sealed       bool      `json:"sealed"`
	Urgency      *float64  `json:"urgency,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewBatchResponse converts a batch entity to its API representation
func NewBatchResponse(b *Batch) *BatchResponse {
	return &BatchResponse{
		ID:           b.ID(),
		IngredientID: b.IngredientID(),
		Quantity:     b.Quantity(),
		Unit:         b.Unit(),
		Storage:      string(b.Storage()),
		Label:        string(b.Label()),
		ExpiresAt:    b.ExpiresAt(),
		State:        string(b.State()),
		Sealed:       b.Sealed(),
		CreatedAt:    b.CreatedAt(),
		UpdatedAt:    b.UpdatedAt(),
	}
}

// NewBatchResponseWithUrgency additionally carries the urgency score used
// to order "expiring soon" results
func NewBatchResponseWithUrgency(b *Batch, now time.Time) *BatchResponse {
	resp := NewBatchResponse(b)
	score := BatchUrgency(b, now)
	resp.Urgency = &score
	return resp
}

// StartSessionRequest is the payload for starting a cooking session
type StartSessionRequest struct {
	RecipeID   string `json:"recipe_id" binding:"required"`
	Servings   int    `json:"servings" binding:"required,gt=0"`
	SkillLevel string `json:"skill_level" binding:"required"`
}

// ConsumptionRequest references one batch deduction within a step
// completion. Order matters: batches are locked in the order given.
type ConsumptionRequest struct {
	IngredientID string    `json:"ingredient_id" binding:"required"`
	BatchID      uuid.UUID `json:"batch_id" binding:"required"`
	Quantity     float64   `json:"quantity" binding:"required,gt=0"`
	Unit         string    `json:"unit" binding:"required"`
}

// CompleteStepRequest is the payload for completing a cooking step
type CompleteStepRequest struct {
	TimerSeconds *int64               `json:"timer_seconds,omitempty"`
	Consumptions []ConsumptionRequest `json:"consumptions" binding:"dive"`
}

// BatchQuantityResult reports a batch's quantity after a deduction so the
// client can reconcile its state
type BatchQuantityResult struct {
	BatchID     uuid.UUID `json:"batch_id"`
	NewQuantity float64   `json:"new_quantity"`
}

// CompleteStepResponse is returned after a step commits
type CompleteStepResponse struct {
	SessionID uuid.UUID             `json:"session_id"`
	StepID    string                `json:"step_id"`
	Status    string                `json:"status"`
	Results   []BatchQuantityResult `json:"results"`
}

// FinishSessionRequest is the payload for finishing a session
type FinishSessionRequest struct {
	Notes    string `json:"notes,omitempty"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

// FinishSessionResponse is returned after a session finishes
type FinishSessionResponse struct {
	SessionID        uuid.UUID `json:"session_id"`
	FinishedAt       time.Time `json:"finished_at"`
	TotalSeconds     int64     `json:"total_seconds"`
	LeftoverPortions int       `json:"leftover_portions"`
}

// StepResponse is the API representation of one step
type StepResponse struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	TimerSeconds *int64            `json:"timer_seconds,omitempty"`
	Consumptions []StepConsumption `json:"consumptions,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// SessionResponse is the API representation of a cooking session
type SessionResponse struct {
	ID         uuid.UUID      `json:"id"`
	RecipeID   string         `json:"recipe_id"`
	Servings   int            `json:"servings"`
	SkillLevel string         `json:"skill_level"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Running    bool           `json:"running"`
	Steps      []StepResponse `json:"steps"`
	Notes      string         `json:"notes,omitempty"`
	PhotoRef   string         `json:"photo_ref,omitempty"`
}

// NewSessionResponse converts a session entity to its API representation
func NewSessionResponse(s *CookingSession) *SessionResponse {
	steps := s.Steps()
	out := make([]StepResponse, 0, len(steps))
	for _, step := range steps {
		sr := StepResponse{
			ID:           step.ID,
			Status:       string(step.Status),
			Consumptions: step.Consumptions,
			CompletedAt:  step.CompletedAt,
		}
		if step.Timer != nil {
			secs := int64(step.Timer.Seconds())
			sr.TimerSeconds = &secs
		}
		out = append(out, sr)
	}

	return &SessionResponse{
		ID:         s.ID(),
		RecipeID:   s.RecipeID(),
		Servings:   s.Servings(),
		SkillLevel: string(s.SkillLevel()),
		StartedAt:  s.StartedAt(),
		FinishedAt: s.FinishedAt(),
		Running:    s.IsRunning(),
		Steps:      out,
		Notes:      s.Notes(),
		PhotoRef:   s.PhotoRef(),
	}
}

// SweepResponse reports how many batches a sweep mutated
type SweepResponse struct {
	Mutated int64     `json:"mutated"`
	RanAt   time.Time `json:"ran_at"`
}

// ErrorResponse is the uniform error payload
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
