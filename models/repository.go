package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when no event has the requested id.
var ErrNotFound = errors.New("event not found")

// Event is the only stored entity. Date is always midnight UTC.
type Event struct {
	ID   int64     `json:"id"`
	Name string    `json:"event"`
	Date time.Time `json:"date"`
}

// ===== Events =====
type EventRepository interface {
	GetAll() ([]Event, error)
	GetByDateRange(start, end time.Time) ([]Event, error) // start <= date <= end
	GetByID(id int64) (Event, error)
	Create(e *Event) error // assigns e.ID
	Delete(id int64) error
	Ping() error
}
