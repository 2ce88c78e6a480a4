package group

import (
	"time"
)

// Group represents a community group that scoped roles can reference
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Status constants
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)
