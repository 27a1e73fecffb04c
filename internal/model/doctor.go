package model

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/scheduling"
)

// Doctor is read-only for the booking flow; its price is the default
// offered when a doctor is picked.
type Doctor struct {
	Base
	ClinicID                uuid.UUID        `db:"clinic_id" json:"clinic_id"`
	Name                    string           `db:"name" json:"name"`
	Specialty               string           `db:"specialty" json:"specialty"`
	AvatarImageURL          *string          `db:"avatar_image_url" json:"avatar_image_url,omitempty"`
	AvailableFromWeekDay    int              `db:"available_from_week_day" json:"available_from_week_day"`
	AvailableToWeekDay      int              `db:"available_to_week_day" json:"available_to_week_day"`
	AvailableFromTime       string           `db:"available_from_time" json:"available_from_time"`
	AvailableToTime         string           `db:"available_to_time" json:"available_to_time"`
	AppointmentPriceInCents scheduling.Cents `db:"appointment_price_in_cents" json:"appointment_price_in_cents"`
}

// DefaultPrice is the value prefilled in the booking form.
func (d *Doctor) DefaultPrice() scheduling.Price {
	return scheduling.NewPrice(d.AppointmentPriceInCents)
}
