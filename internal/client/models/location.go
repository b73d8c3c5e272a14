package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/dares/internal/common"
)

// Location is a row of the locations table.
type Location struct {
	FirebaseUID string    `json:"firebase_uid"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Sharing     bool      `json:"sharing"`
	UpdatedAt   time.Time `json:"updated_at"`

	Username string `json:"-"`
}

// ValidateCoordinates checks WGS84 bounds.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude must be within [-90, 90]", common.ErrValidation)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude must be within [-180, 180]", common.ErrValidation)
	}
	return nil
}
