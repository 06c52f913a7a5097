package models

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/forkful/pantry-service/internal/errors"
)

// BatchState represents the lifecycle state of a pantry batch
type BatchState string

const (
	BatchStateAvailable    BatchState = "AVAILABLE"
	BatchStateReserved     BatchState = "RESERVED"
	BatchStateInCooking    BatchState = "IN_COOKING"
	BatchStateLeftover     BatchState = "LEFTOVER"
	BatchStateFrozen       BatchState = "FROZEN"
	BatchStateExpiringSoon BatchState = "EXPIRING_SOON"
	BatchStateQuarantine   BatchState = "QUARANTINE"
	BatchStateExpired      BatchState = "EXPIRED"
)

// StorageLocation represents where a batch is physically stored
type StorageLocation string

const (
	StoragePantry  StorageLocation = "pantry"
	StorageFridge  StorageLocation = "fridge"
	StorageFreezer StorageLocation = "freezer"
)

// LabelType distinguishes safety-critical expiry labels from quality labels
type LabelType string

const (
	LabelUseBy      LabelType = "use_by"
	LabelBestBefore LabelType = "best_before"
)

// ExpiringSoonWindow is the horizon within which the sweep marks
// available batches as EXPIRING_SOON.
const ExpiringSoonWindow = 3 * 24 * time.Hour

// Batch is a discrete quantity of one ingredient with its own expiry and
// storage attributes. State and quantity are only mutable through the
// transition methods below; every transition validates its precondition
// and returns a typed domain error on violation.
type Batch struct {
	id           uuid.UUID
	ownerID      string
	ingredientID string
	quantity     float64
	unit         string
	storage      StorageLocation
	label        LabelType
	expiresAt    time.Time
	state        BatchState
	sealed       bool
	createdAt    time.Time
	updatedAt    time.Time
}

// NewBatch creates a batch in state AVAILABLE. Quantity must be
// non-negative and ingredient/unit non-empty.
func NewBatch(ownerID, ingredientID string, quantity float64, unit string, storage StorageLocation, label LabelType, expiresAt time.Time, sealed bool) (*Batch, error) {
	if ownerID == "" {
		return nil, apperrors.NewValidationError("owner_id cannot be empty")
	}
	if ingredientID == "" {
		return nil, apperrors.NewValidationError("ingredient_id cannot be empty")
	}
	if unit == "" {
		return nil, apperrors.NewValidationError("unit cannot be empty")
	}
	if quantity < 0 {
		return nil, apperrors.NewValidationError("quantity cannot be negative")
	}

	now := time.Now().UTC()
	return &Batch{
		id:           uuid.New(),
		ownerID:      ownerID,
		ingredientID: ingredientID,
		quantity:     quantity,
		unit:         unit,
		storage:      storage,
		label:        label,
		expiresAt:    expiresAt.UTC(),
		state:        BatchStateAvailable,
		sealed:       sealed,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// RehydrateBatch reconstructs a batch from persisted state. It is intended
// for the storage layer only and performs no transition validation.
func RehydrateBatch(id uuid.UUID, ownerID, ingredientID string, quantity float64, unit string, storage StorageLocation, label LabelType, expiresAt time.Time, state BatchState, sealed bool, createdAt, updatedAt time.Time) *Batch {
	return &Batch{
		id:           id,
		ownerID:      ownerID,
		ingredientID: ingredientID,
		quantity:     quantity,
		unit:         unit,
		storage:      storage,
		label:        label,
		expiresAt:    expiresAt,
		state:        state,
		sealed:       sealed,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (b *Batch) ID() uuid.UUID             { return b.id }
func (b *Batch) OwnerID() string           { return b.ownerID }
func (b *Batch) IngredientID() string      { return b.ingredientID }
func (b *Batch) Quantity() float64         { return b.quantity }
func (b *Batch) Unit() string              { return b.unit }
func (b *Batch) Storage() StorageLocation  { return b.storage }
func (b *Batch) Label() LabelType          { return b.label }
func (b *Batch) ExpiresAt() time.Time      { return b.expiresAt }
func (b *Batch) State() BatchState         { return b.state }
func (b *Batch) Sealed() bool              { return b.sealed }
func (b *Batch) CreatedAt() time.Time      { return b.createdAt }
func (b *Batch) UpdatedAt() time.Time      { return b.updatedAt }

// CanBeConsumed reports whether the batch may be consumed at the given
// time. Batches past a use_by date are never consumable; best_before
// batches remain consumable past their date.
func (b *Batch) CanBeConsumed(now time.Time) bool {
	if b.state != BatchStateAvailable && b.state != BatchStateReserved {
		return false
	}
	if b.label == LabelUseBy && now.After(b.expiresAt) {
		return false
	}
	return true
}

// Reserve moves an AVAILABLE batch to RESERVED.
func (b *Batch) Reserve() error {
	if b.state != BatchStateAvailable {
		return apperrors.NewInvalidStateError("batch", b.id.String(),
			"cannot reserve batch in state "+string(b.state))
	}
	b.state = BatchStateReserved
	b.touch()
	return nil
}

// Freeze moves an AVAILABLE or RESERVED batch to FROZEN, relocating it to
// the freezer and extending its expiry to newExpiry.
func (b *Batch) Freeze(newExpiry time.Time) error {
	if b.state != BatchStateAvailable && b.state != BatchStateReserved {
		return apperrors.NewInvalidStateError("batch", b.id.String(),
			"cannot freeze batch in state "+string(b.state))
	}
	b.state = BatchStateFrozen
	b.storage = StorageFreezer
	b.expiresAt = newExpiry.UTC()
	b.touch()
	return nil
}

// Quarantine moves a batch to QUARANTINE. Allowed from any state as a
// manual override.
func (b *Batch) Quarantine() error {
	b.state = BatchStateQuarantine
	b.touch()
	return nil
}

// Discard disposes of a batch. Allowed from any non-terminal state.
func (b *Batch) Discard() error {
	if b.state == BatchStateExpired {
		return apperrors.NewInvalidStateError("batch", b.id.String(),
			"cannot discard batch in state "+string(b.state))
	}
	b.state = BatchStateExpired
	b.touch()
	return nil
}

// ConsumeQuantity deducts qty from the batch. The quantity check happens
// before any mutation so the batch is left unchanged on failure; reaching
// exactly zero flips the batch to LEFTOVER.
func (b *Batch) ConsumeQuantity(qty float64, now time.Time) error {
	if qty <= 0 {
		return apperrors.NewValidationError("consumed quantity must be positive")
	}
	if !b.CanBeConsumed(now) {
		return apperrors.NewInvalidStateError("batch", b.id.String(),
			"cannot consume batch in state "+string(b.state))
	}
	if qty > b.quantity {
		return apperrors.NewInsufficientQuantityError(b.id.String(), b.quantity, qty, b.unit)
	}

	b.quantity -= qty
	if b.quantity == 0 {
		b.state = BatchStateLeftover
	}
	b.touch()
	return nil
}

// MarkExpiringSoon is applied by the expiry sweep to AVAILABLE batches
// whose expiry falls within the sweep window.
func (b *Batch) MarkExpiringSoon(now time.Time) error {
	if b.state != BatchStateAvailable {
		return apperrors.NewInvalidStateError("batch", b.id.String(),
			"cannot mark expiring batch in state "+string(b.state))
	}
	if !now.Before(b.expiresAt) || b.expiresAt.After(now.Add(ExpiringSoonWindow)) {
		return apperrors.NewInvalidStateError("batch", b.id.String(),
			"batch expiry is outside the expiring-soon window")
	}
	b.state = BatchStateExpiringSoon
	b.touch()
	return nil
}

// Expire is applied by the expiry sweep once a batch is past its date:
// use_by batches become EXPIRED, best_before batches are quarantined for
// manual review.
func (b *Batch) Expire(now time.Time) error {
	if b.state != BatchStateAvailable && b.state != BatchStateReserved && b.state != BatchStateExpiringSoon {
		return apperrors.NewInvalidStateError("batch", b.id.String(),
			"cannot expire batch in state "+string(b.state))
	}
	if !now.After(b.expiresAt) {
		return apperrors.NewInvalidStateError("batch", b.id.String(),
			"batch is not past its expiry")
	}
	if b.label == LabelUseBy {
		b.state = BatchStateExpired
	} else {
		b.state = BatchStateQuarantine
	}
	b.touch()
	return nil
}

func (b *Batch) touch() {
	b.updatedAt = time.Now().UTC()
}

// ValidStorageLocation reports whether s is a known storage location.
func ValidStorageLocation(s StorageLocation) bool {
	switch s {
	case StoragePantry, StorageFridge, StorageFreezer:
		return true
	}
	return false
}

// ValidLabelType reports whether l is a known label type.
func ValidLabelType(l LabelType) bool {
	return l == LabelUseBy || l == LabelBestBefore
}
