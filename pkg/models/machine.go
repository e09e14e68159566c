package models

// Machine is a device left for repair, attached to an order and
// optionally stored in a space.
type Machine struct {
	ID             int     `json:"id"`
	Model          string  `json:"modelo"`
	Description    *string `json:"descripcion"`
	Accessories    *string `json:"accesorios"`
	RepairCost     float64 `json:"costo_arreglo"`
	EntryDate      string  `json:"fechaIngreso"`
	ImgFront       *string `json:"img_anverso"`
	ImgBack        *string `json:"img_reverso"`
	ImgAccessories *string `json:"img_accesorios"`
	Order          *Order  `json:"order"`
	Space          *Space  `json:"space"`
}

// CreateMachineRequest is the body for POST machines.
type CreateMachineRequest struct {
	OrderID        int      `json:"id_order" validate:"required,gt=0"`
	Model          string   `json:"modelo" validate:"required"`
	SpaceID        *int     `json:"id_spaces,omitempty" validate:"omitempty,gt=0"`
	RepairCost     *float64 `json:"costo_arreglo,omitempty" validate:"omitempty,gte=0"`
	Description    *string  `json:"descripcion,omitempty"`
	Accessories    *string  `json:"accesorios,omitempty"`
	ImgFront       *string  `json:"img_anverso,omitempty"`
	ImgBack        *string  `json:"img_reverso,omitempty"`
	ImgAccessories *string  `json:"img_accesorios,omitempty"`
}

// UpdateMachineRequest is the body for PATCH machines/{id}.
type UpdateMachineRequest struct {
	OrderID        *int     `json:"id_order,omitempty" validate:"omitempty,gt=0"`
	Model          *string  `json:"modelo,omitempty" validate:"omitempty,min=1"`
	SpaceID        *int     `json:"id_spaces,omitempty" validate:"omitempty,gt=0"`
	RepairCost     *float64 `json:"costo_arreglo,omitempty" validate:"omitempty,gte=0"`
	Description    *string  `json:"descripcion,omitempty"`
	Accessories    *string  `json:"accesorios,omitempty"`
	ImgFront       *string  `json:"img_anverso,omitempty"`
	ImgBack        *string  `json:"img_reverso,omitempty"`
	ImgAccessories *string  `json:"img_accesorios,omitempty"`
}
