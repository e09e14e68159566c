package models

// Client is a repair-shop customer as returned by the backend.
type Client struct {
	ID        int     `json:"id"`
	Name      string  `json:"nombre"`
	Address   *string `json:"dirección"`
	IDCard    *string `json:"cedula"`
	Phone1    string  `json:"telf1"`
	Phone2    *string `json:"telf2"`
	Email     *string `json:"email"`
	CreatedAt string  `json:"fechaCreacion"`
}

// ClientRequest is the body for creating or updating a client.
type ClientRequest struct {
	Name    string  `json:"nombre" validate:"required"`
	Address string  `json:"dirección"`
	IDCard  *string `json:"cedula,omitempty"`
	Phone1  string  `json:"telf1" validate:"required"`
	Phone2  *string `json:"telf2,omitempty"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
}
