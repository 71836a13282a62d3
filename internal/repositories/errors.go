package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a record does not exist or is not visible to the caller
var ErrNotFound = errors.New("record not found")

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
