package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/delvicier/fixagent/internal/api"
	"github.com/delvicier/fixagent/internal/session"
	"github.com/spf13/cobra"
)

// resource binds a backend collection to list/get/delete subcommands.
type resource struct {
	name   string
	short  string
	list   func(ctx context.Context, c *api.Client) (any, error)
	get    func(ctx context.Context, c *api.Client, id int) (any, error)
	// delete is a method expression, so the client comes first.
	delete func(c *api.Client, ctx context.Context, id int) (*api.Result[api.Empty], error)
}

func asAny[T any](v *T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

var machinesByOrder int

var resources = []resource{
	{
		name:  "clients",
		short: "Repair-shop clients",
		list: func(ctx context.Context, c *api.Client) (any, error) {
			return asAny(result(c.ListClients(ctx)))
		},
		get: func(ctx context.Context, c *api.Client, id int) (any, error) {
			return asAny(result(c.GetClient(ctx, id)))
		},
		delete: (*api.Client).DeleteClient,
	},
	{
		name:  "orders",
		short: "Work orders",
		list: func(ctx context.Context, c *api.Client) (any, error) {
			return asAny(result(c.ListOrders(ctx)))
		},
		get: func(ctx context.Context, c *api.Client, id int) (any, error) {
			return asAny(result(c.GetOrder(ctx, id)))
		},
		delete: (*api.Client).DeleteOrder,
	},
	{
		name:  "machines",
		short: "Machines checked in for repair",
		list: func(ctx context.Context, c *api.Client) (any, error) {
			if machinesByOrder > 0 {
				return asAny(result(c.ListMachinesByOrder(ctx, machinesByOrder)))
			}
			return asAny(result(c.ListMachines(ctx)))
		},
		get: func(ctx context.Context, c *api.Client, id int) (any, error) {
			return asAny(result(c.GetMachine(ctx, id)))
		},
		delete: (*api.Client).DeleteMachine,
	},
	{
		name:  "spaces",
		short: "Storage spaces",
		list: func(ctx context.Context, c *api.Client) (any, error) {
			return asAny(result(c.ListSpaces(ctx)))
		},
		get: func(ctx context.Context, c *api.Client, id int) (any, error) {
			return asAny(result(c.GetSpace(ctx, id)))
		},
		delete: (*api.Client).DeleteSpace,
	},
}

func resourceCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(resources))
	for _, r := range resources {
		cmds = append(cmds, r.command())
	}
	return cmds
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func (r resource) command() *cobra.Command {
	parent := &cobra.Command{Use: r.name, Short: r.short}

	list := &cobra.Command{
		Use:   "list",
		Short: "List " + r.name,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			v, err := r.list(cmd.Context(), a.client)
			if err != nil {
				return err
			}
			return printJSON(cmd, v)
		},
	}
	if r.name == "machines" {
		list.Flags().IntVar(&machinesByOrder, "order", 0, "only machines of this order id")
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one of " + r.name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			v, err := r.get(cmd.Context(), a.client, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, v)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of " + r.name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := r.delete(a.client, cmd.Context(), id)
			if err != nil {
				return err
			}
			if !res.OK() {
				return &session.StatusError{Code: res.StatusCode, Problem: res.Problem}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %d\n", r.name, id)
			return nil
		},
	}

	parent.AddCommand(list, get, del)
	return parent
}
