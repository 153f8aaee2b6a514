package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/apperror"
)

// EventInput is the writable part of an event.
type EventInput struct {
	Name             string           `json:"name" binding:"required,max=255"`
	Description      string           `json:"description" binding:"required"`
	Place            string           `json:"place" binding:"required,max=255"`
	Type             models.EventType `json:"type" binding:"required,oneof=Football Futsal"`
	Gender           models.Gender    `json:"gender" binding:"required,oneof=Man Woman"`
	NeedBall         bool             `json:"need_ball"`
	NeedForm         bool             `json:"need_form"`
	Forms            models.Forms     `json:"forms" binding:"omitempty,oneof=Shirt-Front T-Shirt Any"`
	ContactNumber    *string          `json:"contact_number"`
	Price            *int             `json:"price"`
	PriceDescription *string          `json:"price_description"`
	StartAt          time.Time        `json:"date_and_time" binding:"required"`
	DurationMinutes  int              `json:"duration" binding:"required"`
	AmountMembers    int              `json:"amount_members"`
	Privacy          bool             `json:"privacy"`
}

// CreateInput is an event plus the users to invite on creation.
type CreateInput struct {
	EventInput
	Invite []uuid.UUID `json:"current_users"`
}

// validate checks the input and normalises it: start rounded to the minute, defaults filled.
// current is the stored start of an existing event, which may stay in the past.
func (in *EventInput) validate(now time.Time, current *time.Time) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperror.Validation("name is required")
	}
	in.StartAt = in.StartAt.UTC().Round(time.Minute)
	unchanged := current != nil && in.StartAt.Equal(*current)
	if !unchanged && in.StartAt.Before(now.UTC().Truncate(time.Minute)) {
		return apperror.Validation("date_and_time cannot be in the past")
	}
	if !models.ValidDuration(in.DurationMinutes) {
		return apperror.Validation("duration must be 10..180 minutes in steps of 10")
	}
	if in.AmountMembers == 0 {
		in.AmountMembers = models.MinMembers
	}
	if !models.ValidCapacity(in.AmountMembers) {
		return apperror.Validation("amount_members must be within 6..50")
	}
	if in.Forms == "" {
		in.Forms = models.FormsAny
	}
	hasDesc := in.PriceDescription != nil && strings.TrimSpace(*in.PriceDescription) != ""
	switch {
	case in.Price != nil && *in.Price < 1:
		return apperror.Validation("price must be positive")
	case in.Price != nil && !hasDesc:
		return apperror.Validation("price_description is required when price is set")
	case in.Price == nil && hasDesc:
		return apperror.Validation("price_description requires a price")
	case hasDesc && len(*in.PriceDescription) > models.MaxPriceDescLen:
		return apperror.Validation("price_description is too long")
	}
	return nil
}

func (in *EventInput) apply(e *models.Event) {
	e.Name = in.Name
	e.Description = in.Description
	e.Place = in.Place
	e.Type = in.Type
	e.Gender = in.Gender
	e.NeedBall = in.NeedBall
	e.NeedForm = in.NeedForm
	e.Forms = in.Forms
	e.ContactNumber = in.ContactNumber
	e.Price = in.Price
	e.PriceDescription = in.PriceDescription
	e.StartAt = in.StartAt
	e.DurationMinutes = in.DurationMinutes
	e.AmountMembers = in.AmountMembers
	e.Privacy = in.Privacy
}
