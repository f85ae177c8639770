package models

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrConflict         = errors.New("concurrent update conflict")
	ErrSessionCompleted = errors.New("practice session already completed")
	ErrNothingDue       = errors.New("no mistakes due for practice")
)
