package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// ErrInvalidQuantity indicates that a quantity is invalid
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidStorage indicates an unknown storage location
	ErrInvalidStorage = errors.New("invalid storage location")

	// ErrInvalidLabel indicates an unknown label type
	ErrInvalidLabel = errors.New("invalid label type")

	// ErrInvalidSkillLevel indicates an unknown skill level
	ErrInvalidSkillLevel = errors.New("invalid skill level")

	// ErrInvalidIngredient indicates a malformed ingredient identifier
	ErrInvalidIngredient = errors.New("invalid ingredient identifier")

	// ErrEmptyConsumptions indicates that a consumption list is empty
	ErrEmptyConsumptions = errors.New("consumptions list cannot be empty")
)

var (
	// ingredientRegex keeps ingredient identifiers to lowercase slugs
	ingredientRegex = regexp.MustCompile(`^[a-z0-9_\-]+$`)

	validate = newValidator()
)

// newValidator builds a validator honoring the same `binding` tags gin
// enforces, so manual validation and request binding cannot disagree.
func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// ValidateIngredientID validates an ingredient identifier
func ValidateIngredientID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: ingredient_id cannot be empty", ErrInvalidIngredient)
	}
	if len(id) > 100 {
		return fmt.Errorf("%w: ingredient_id cannot exceed 100 characters", ErrInvalidIngredient)
	}
	if !ingredientRegex.MatchString(id) {
		return fmt.Errorf("%w: ingredient_id must contain only lowercase letters, numbers, hyphens and underscores", ErrInvalidIngredient)
	}
	return nil
}

// ValidateAddBatchRequest validates an AddBatchRequest
func ValidateAddBatchRequest(req *AddBatchRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	if err := ValidateIngredientID(req.IngredientID); err != nil {
		return err
	}

	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidQuantity)
	}

	if !ValidStorageLocation(StorageLocation(req.Storage)) {
		return fmt.Errorf("%w: %s", ErrInvalidStorage, req.Storage)
	}

	if !ValidLabelType(LabelType(req.Label)) {
		return fmt.Errorf("%w: %s", ErrInvalidLabel, req.Label)
	}

	if req.ExpiresAt.Before(time.Now().Add(-24 * time.Hour)) {
		return errors.New("expires_at is too far in the past")
	}

	return nil
}

// ValidateStartSessionRequest validates a StartSessionRequest
func ValidateStartSessionRequest(req *StartSessionRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	switch SkillLevel(req.SkillLevel) {
	case SkillBeginner, SkillIntermediate, SkillAdvanced:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidSkillLevel, req.SkillLevel)
	}

	return nil
}

// ValidateCompleteStepRequest validates a CompleteStepRequest. A step may
// legitimately consume nothing (e.g. "preheat the oven").
func ValidateCompleteStepRequest(req *CompleteStepRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	if req.TimerSeconds != nil && *req.TimerSeconds < 0 {
		return errors.New("timer_seconds cannot be negative")
	}

	for i, c := range req.Consumptions {
		if err := ValidateIngredientID(c.IngredientID); err != nil {
			return fmt.Errorf("consumptions[%d]: %w", i, err)
		}
		if c.BatchID == uuid.Nil {
			return fmt.Errorf("consumptions[%d]: batch_id cannot be nil", i)
		}
		if c.Quantity <= 0 {
			return fmt.Errorf("consumptions[%d]: %w: quantity must be positive", i, ErrInvalidQuantity)
		}
		if c.Unit == "" {
			return fmt.Errorf("consumptions[%d]: unit cannot be empty", i)
		}
	}

	return nil
}

// ValidateExpiringQuery validates the parameters of an expiring-soon search
func ValidateExpiringQuery(withinDays int, storage string) error {
	if withinDays <= 0 || withinDays > 365 {
		return errors.New("within_days must be between 1 and 365")
	}
	if storage != "" && !ValidStorageLocation(StorageLocation(storage)) {
		return fmt.Errorf("%w: %s", ErrInvalidStorage, storage)
	}
	return nil
}
