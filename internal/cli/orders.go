package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
)

type OrdersOptions struct {
	*RootOptions
	Status          string
	Merchant        string
	CustomerContact string
	From            string
	To              string
	Search          string
	Grouped         bool
}

func (o *OrdersOptions) filter() (domain.OrderFilter, error) {
	from, err := domain.ParseCreatedBound(o.From, false)
	if err != nil {
		return domain.OrderFilter{}, fmt.Errorf("--from: %w", err)
	}
	to, err := domain.ParseCreatedBound(o.To, true)
	if err != nil {
		return domain.OrderFilter{}, fmt.Errorf("--to: %w", err)
	}
	status, active := domain.ParseStatusFilter(o.Status)
	return domain.OrderFilter{
		Status:          status,
		Active:          active,
		Merchant:        o.Merchant,
		CustomerContact: o.CustomerContact,
		CreatedFrom:     from,
		CreatedTo:       to,
		Search:          o.Search,
	}, nil
}

func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrdersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Load a snapshot and list the visible orders",
		Long: `Load the current order snapshot for the stored session and print it.

Example:
  ordertrack orders --status in_transit
  ordertrack orders --status active --from 2025-03-01 --to 2025-03-07
  ordertrack orders --grouped --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.filter()
			if err != nil {
				return err
			}

			a, zapLogger, err := openApp(opts.RootOptions)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			defer a.Close()

			engine := a.Engine()
			if err := engine.Start(cmd.Context()); err != nil {
				return err
			}

			if opts.Grouped {
				groups := engine.GroupByStatus(filter)
				return writeOutput(cmd, opts.Format, dto.GroupedFromDomain(groups), func(p *printer) {
					for _, g := range groups {
						p.line("%s (%d)", g.Status, len(g.Orders))
						for _, o := range g.Orders {
							p.row("", o.OrderID, o.MerchantName, o.CustomerName, o.UpdatedAt.Format(time.RFC3339))
						}
					}
				})
			}

			orders := engine.GetOrders(filter)
			return writeOutput(cmd, opts.Format, dto.OrderListResponse{
				Count:  len(orders),
				Orders: dto.OrdersFromDomain(orders),
			}, func(p *printer) {
				p.row("ORDER", "STATUS", "MERCHANT", "CUSTOMER", "UPDATED")
				for _, o := range orders {
					p.row(o.OrderID, string(o.CurrentStatus), o.MerchantName, o.CustomerName, o.UpdatedAt.Format(time.RFC3339))
				}
			})
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", `only orders in this status, or "active" for every non-terminal one`)
	cmd.Flags().StringVar(&opts.Merchant, "merchant", "", "only orders of this merchant")
	cmd.Flags().StringVar(&opts.CustomerContact, "customer-contact", "", "only orders for this customer phone number")
	cmd.Flags().StringVar(&opts.From, "from", "", "created on or after (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&opts.To, "to", "", "created on or before (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVarP(&opts.Search, "query", "q", "", "free-text search on id, customer and product")
	cmd.Flags().BoolVar(&opts.Grouped, "grouped", false, "group orders by status")

	return cmd
}

func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <order-id>",
		Short: "Print the status history of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, zapLogger, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			defer a.Close()

			entries, err := a.Engine().GetHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, rootOpts.Format, dto.HistoryFromDomain(args[0], entries), func(p *printer) {
				p.row("TIMESTAMP", "STATUS", "UPDATED BY")
				for _, e := range entries {
					p.row(e.Timestamp.Format(time.RFC3339), string(e.Status), e.UpdatedBy)
				}
			})
		},
	}
}

type CreateOptions struct {
	*RootOptions
	Input domain.CreateOrderInput
}

func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order (merchants only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, zapLogger, err := openApp(opts.RootOptions)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			defer a.Close()

			order, err := a.Engine().CreateOrder(cmd.Context(), opts.Input)
			if err != nil {
				return err
			}
			return writeOutput(cmd, opts.Format, dto.OrderFromDomain(*order), func(p *printer) {
				p.line("order %s accepted (%s)", order.OrderID, order.CurrentStatus)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Input.OrderID, "id", "", "order id (required)")
	cmd.Flags().StringVar(&opts.Input.ProductName, "product", "", "product name")
	cmd.Flags().StringVar(&opts.Input.CustomerName, "customer", "", "customer name")
	cmd.Flags().StringVar(&opts.Input.CustomerContact, "contact", "", "customer phone number")
	cmd.Flags().StringVar(&opts.Input.CustomerAddress, "address", "", "delivery address")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func NewTransitionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transition <order-id> <status>",
		Short: "Move an order to a new status (operations team only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, zapLogger, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			defer a.Close()

			engine := a.Engine()
			if err := engine.Start(cmd.Context()); err != nil {
				return err
			}
			order, err := engine.TransitionStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeOutput(cmd, rootOpts.Format, dto.OrderFromDomain(*order), func(p *printer) {
				p.line("order %s is now %s", order.OrderID, order.CurrentStatus)
			})
		},
	}
}
