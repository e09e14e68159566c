package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/delvicier/fixagent/pkg/models"
)

func itemPath(collection string, id int) string {
	return collection + "/" + strconv.Itoa(id)
}

// Clients

func (c *Client) ListClients(ctx context.Context) (*Result[[]models.Client], error) {
	return send[[]models.Client](ctx, c, request{method: http.MethodGet, path: "clients"})
}

func (c *Client) GetClient(ctx context.Context, id int) (*Result[models.Client], error) {
	return send[models.Client](ctx, c, request{method: http.MethodGet, path: itemPath("clients", id)})
}

func (c *Client) CreateClient(ctx context.Context, req models.ClientRequest) (*Result[models.Client], error) {
	return send[models.Client](ctx, c, request{method: http.MethodPost, path: "clients", body: req})
}

func (c *Client) UpdateClient(ctx context.Context, id int, req models.ClientRequest) (*Result[models.Client], error) {
	return send[models.Client](ctx, c, request{method: http.MethodPatch, path: itemPath("clients", id), body: req})
}

func (c *Client) DeleteClient(ctx context.Context, id int) (*Result[Empty], error) {
	return send[Empty](ctx, c, request{method: http.MethodDelete, path: itemPath("clients", id)})
}

// Orders

func (c *Client) ListOrders(ctx context.Context) (*Result[[]models.Order], error) {
	return send[[]models.Order](ctx, c, request{method: http.MethodGet, path: "orders"})
}

func (c *Client) GetOrder(ctx context.Context, id int) (*Result[models.Order], error) {
	return send[models.Order](ctx, c, request{method: http.MethodGet, path: itemPath("orders", id)})
}

func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*Result[models.Order], error) {
	return send[models.Order](ctx, c, request{method: http.MethodPost, path: "orders", body: req})
}

func (c *Client) UpdateOrder(ctx context.Context, id int, req models.UpdateOrderRequest) (*Result[models.Order], error) {
	return send[models.Order](ctx, c, request{method: http.MethodPatch, path: itemPath("orders", id), body: req})
}

func (c *Client) DeleteOrder(ctx context.Context, id int) (*Result[Empty], error) {
	return send[Empty](ctx, c, request{method: http.MethodDelete, path: itemPath("orders", id)})
}

// Machines

func (c *Client) ListMachines(ctx context.Context) (*Result[[]models.Machine], error) {
	return send[[]models.Machine](ctx, c, request{method: http.MethodGet, path: "machines"})
}

// ListMachinesByOrder returns the machines attached to one order.
func (c *Client) ListMachinesByOrder(ctx context.Context, orderID int) (*Result[[]models.Machine], error) {
	return send[[]models.Machine](ctx, c, request{method: http.MethodGet, path: itemPath("machines/by-order", orderID)})
}

func (c *Client) GetMachine(ctx context.Context, id int) (*Result[models.Machine], error) {
	return send[models.Machine](ctx, c, request{method: http.MethodGet, path: itemPath("machines", id)})
}

func (c *Client) CreateMachine(ctx context.Context, req models.CreateMachineRequest) (*Result[models.Machine], error) {
	return send[models.Machine](ctx, c, request{method: http.MethodPost, path: "machines", body: req})
}

func (c *Client) UpdateMachine(ctx context.Context, id int, req models.UpdateMachineRequest) (*Result[models.Machine], error) {
	return send[models.Machine](ctx, c, request{method: http.MethodPatch, path: itemPath("machines", id), body: req})
}

func (c *Client) DeleteMachine(ctx context.Context, id int) (*Result[Empty], error) {
	return send[Empty](ctx, c, request{method: http.MethodDelete, path: itemPath("machines", id)})
}

// Spaces

func (c *Client) ListSpaces(ctx context.Context) (*Result[[]models.Space], error) {
	return send[[]models.Space](ctx, c, request{method: http.MethodGet, path: "spaces"})
}

func (c *Client) GetSpace(ctx context.Context, id int) (*Result[models.Space], error) {
	return send[models.Space](ctx, c, request{method: http.MethodGet, path: itemPath("spaces", id)})
}

func (c *Client) CreateSpace(ctx context.Context, req models.SpaceRequest) (*Result[models.Space], error) {
	return send[models.Space](ctx, c, request{method: http.MethodPost, path: "spaces", body: req})
}

func (c *Client) UpdateSpace(ctx context.Context, id int, req models.SpaceRequest) (*Result[models.Space], error) {
	return send[models.Space](ctx, c, request{method: http.MethodPatch, path: itemPath("spaces", id), body: req})
}

func (c *Client) DeleteSpace(ctx context.Context, id int) (*Result[Empty], error) {
	return send[Empty](ctx, c, request{method: http.MethodDelete, path: itemPath("spaces", id)})
}
