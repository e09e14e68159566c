package models

// Order is a repair order. The backend embeds the owning client.
type Order struct {
	ID            int          `json:"id"`
	CreatedAt     string       `json:"fechaCreacion"`
	TimeExtension *int         `json:"extension_tiempo"`
	Detail        *string      `json:"detalle"`
	DeliveryDate  *string      `json:"entrega"`
	Completed     bool         `json:"estado"`
	Paid          bool         `json:"cobrado"`
	Total         *float64     `json:"total"`
	Client        *OrderClient `json:"client"`
}

// OrderClient is the client summary embedded in an Order.
type OrderClient struct {
	ID        int     `json:"id"`
	Name      string  `json:"nombre"`
	IDCard    *string `json:"cedula"`
	Address   *string `json:"dirección"`
	Phone1    *string `json:"telf1"`
	Phone2    *string `json:"telf2"`
	Email     *string `json:"email"`
	CreatedAt string  `json:"fechaCreacion"`
}

// OrderStatus is the display state derived from an order's flags.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusPaid      OrderStatus = "paid"
)

// Status reports the order's display state. Paid takes precedence over
// completed.
func (o Order) Status() OrderStatus {
	switch {
	case o.Paid:
		return OrderStatusPaid
	case o.Completed:
		return OrderStatusCompleted
	default:
		return OrderStatusPending
	}
}

// CreateOrderRequest is the body for POST orders.
type CreateOrderRequest struct {
	ClientID      int      `json:"id_client" validate:"required,gt=0"`
	Detail        *string  `json:"detalle,omitempty"`
	TimeExtension *int     `json:"extension_tiempo,omitempty" validate:"omitempty,gte=0"`
	DeliveryDate  *string  `json:"entrega,omitempty"`
	Total         *float64 `json:"total,omitempty" validate:"omitempty,gte=0"`
	Paid          bool     `json:"cobrado"`
	Completed     bool     `json:"estado"`
}

// UpdateOrderRequest is the body for PATCH orders/{id}. Nil fields are
// left unchanged by the backend.
type UpdateOrderRequest struct {
	ClientID      *int     `json:"id_client,omitempty" validate:"omitempty,gt=0"`
	Detail        *string  `json:"detalle,omitempty"`
	TimeExtension *int     `json:"extension_tiempo,omitempty" validate:"omitempty,gte=0"`
	DeliveryDate  *string  `json:"entrega,omitempty"`
	Total         *float64 `json:"total,omitempty" validate:"omitempty,gte=0"`
	Paid          *bool    `json:"cobrado,omitempty"`
	Completed     *bool    `json:"estado,omitempty"`
}
