package domain

import "github.com/google/uuid"

// NewID returns a time-ordered UUID v7 string.
// It panics if generation fails, which only happens when the system random
// source is broken.
func NewID() string {
	v7, err := uuid.NewV7()
	if err != nil {
		panic("failed to create UUID v7: " + err.Error())
	}
	return v7.String()
}
