package routes_test

import (
	"errors"
	"sort"
	"time"

	"eventapi/models"
)

// MockEventRepo is a map-backed fake store.
type MockEventRepo struct {
	Items  map[int64]models.Event
	nextID int64
}

func newMockRepo() *MockEventRepo { return &MockEventRepo{Items: map[int64]models.Event{}} }

func (m *MockEventRepo) sorted(keep func(models.Event) bool) []models.Event {
	out := []models.Event{}
	for _, e := range m.Items {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockEventRepo) GetAll() ([]models.Event, error) {
	return m.sorted(func(models.Event) bool { return true }), nil
}

func (m *MockEventRepo) GetByDateRange(start, end time.Time) ([]models.Event, error) {
	return m.sorted(func(e models.Event) bool {
		return !e.Date.Before(start) && !e.Date.After(end)
	}), nil
}

func (m *MockEventRepo) GetByID(id int64) (models.Event, error) {
	e, ok := m.Items[id]
	if !ok {
		return models.Event{}, models.ErrNotFound
	}
	return e, nil
}

func (m *MockEventRepo) Create(e *models.Event) error {
	m.nextID++
	e.ID = m.nextID
	m.Items[e.ID] = *e
	return nil
}

func (m *MockEventRepo) Delete(id int64) error {
	if _, ok := m.Items[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.Items, id)
	return nil
}

func (m *MockEventRepo) Ping() error { return nil }

// put stores an event under a fixed id.
func (m *MockEventRepo) put(id int64, name, date string) {
	d, err := models.ParseDate(date)
	if err != nil {
		panic(err)
	}
	m.Items[id] = models.Event{ID: id, Name: name, Date: d}
	if id > m.nextID {
		m.nextID = id
	}
}

// failingEventRepo errors on every call it overrides.
type failingEventRepo struct{ models.EventRepository }

var errBoom = errors.New("boom")

func (failingEventRepo) GetAll() ([]models.Event, error) { return nil, errBoom }
func (failingEventRepo) GetByDateRange(time.Time, time.Time) ([]models.Event, error) {
	return nil, errBoom
}
func (failingEventRepo) GetByID(int64) (models.Event, error) { return models.Event{}, errBoom }
func (failingEventRepo) Create(*models.Event) error          { return errBoom }
func (failingEventRepo) Delete(int64) error                  { return errBoom }
func (failingEventRepo) Ping() error                         { return errBoom }
