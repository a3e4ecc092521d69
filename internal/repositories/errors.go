package repositories

import "errors"

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")

	ErrHourlyLimit = errors.New("hourly send limit reached")
	ErrDailyLimit  = errors.New("daily send limit reached")
)
