package testutil

import (
	"time"

	"github.com/delvicier/fixagent/pkg/models"
)

const fixtureDate = "2025-01-01T00:00:00.000Z"

// NewClient returns a Client with sensible defaults, suitable for test
// fixtures. Override individual fields with options.
func NewClient(opts ...func(*models.Client)) models.Client {
	c := models.Client{
		ID:        1,
		Name:      "Ana Torres",
		Phone1:    "0991234567",
		CreatedAt: fixtureDate,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithClientID sets the client ID.
func WithClientID(id int) func(*models.Client) {
	return func(c *models.Client) { c.ID = id }
}

// WithClientName sets the client name.
func WithClientName(name string) func(*models.Client) {
	return func(c *models.Client) { c.Name = name }
}

// NewOrder returns an open Order owned by client 1.
func NewOrder(opts ...func(*models.Order)) models.Order {
	total := 45.5
	o := models.Order{
		ID:        10,
		CreatedAt: fixtureDate,
		Total:     &total,
		Client: &models.OrderClient{
			ID:        1,
			Name:      "Ana Torres",
			CreatedAt: fixtureDate,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithPaid marks the order as paid.
func WithPaid() func(*models.Order) {
	return func(o *models.Order) { o.Paid = true }
}

// NewMachine returns a Machine attached to order 10.
func NewMachine(opts ...func(*models.Machine)) models.Machine {
	order := NewOrder()
	m := models.Machine{
		ID:         100,
		Model:      "Epson L3150",
		RepairCost: 20,
		EntryDate:  fixtureDate,
		Order:      &order,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// NewSpace returns a Space with a color and no image.
func NewSpace(opts ...func(*models.Space)) models.Space {
	color := "#1976D2"
	s := models.Space{
		ID:        5,
		Alias:     "Estante A",
		Color:     &color,
		CreatedAt: fixtureDate,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// StartedAt formats t the way scan sessions store timestamps.
func StartedAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
