package models

// Space is a physical storage location in the shop.
type Space struct {
	ID          int     `json:"id"`
	Alias       string  `json:"alias"`
	Description *string `json:"descripcion"`
	Image       *string `json:"image"`
	Color       *string `json:"color"`
	CreatedAt   string  `json:"fechaCreacion"`
}

// SpaceRequest is the body for creating or updating a space.
type SpaceRequest struct {
	Alias       string `json:"alias" validate:"required"`
	Description string `json:"descripcion"`
	Image       string `json:"image"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}
