package reputation

import "github.com/google/uuid"

// AdjustRequest is a manual reputation override
type AdjustRequest struct {
	Delta  int    `json:"delta" validate:"required,min=-1000,max=1000"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// EventRequest reports an outcome from another service
type EventRequest struct {
	EventType   string    `json:"event_type" validate:"required,oneof=order_fulfilled order_cancelled"`
	Delta       *int      `json:"delta,omitempty" validate:"omitempty,min=-1000,max=1000"`
	Reason      string    `json:"reason" validate:"required,min=3,max=500"`
	ReferenceID uuid.UUID `json:"reference_id" validate:"required"`
}
