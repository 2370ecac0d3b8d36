package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wichananm65/perfume-shop-backend/internal/checkout"
	"github.com/wichananm65/perfume-shop-backend/internal/order"
)

type orphanLister interface {
	WithoutItems(ctx context.Context) ([]order.Order, error)
}

type reconcileReport struct {
	OrdersWithoutItems []order.Order     `json:"ordersWithoutItems"`
	Hazards            []checkout.Hazard `json:"hazards"`
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "List orders stored without items and captured payments that were not recorded",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			orders := order.NewService(order.NewPostgresRepository(db))
			return runReconcile(ctx, cmd.OutOrStdout(), opts.Format, orders, checkout.NewPostgresLedger(db))
		},
	}
}

func runReconcile(ctx context.Context, w io.Writer, format string, orders orphanLister, ledger checkout.Ledger) error {
	orphans, err := orders.WithoutItems(ctx)
	if err != nil {
		return fmt.Errorf("orders without items: %w", err)
	}
	hazards, err := ledger.List(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation log: %w", err)
	}

	if format == "json" {
		return json.NewEncoder(w).Encode(reconcileReport{OrdersWithoutItems: orphans, Hazards: hazards})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ORDERS WITHOUT ITEMS: %d\n", len(orphans))
	if len(orphans) > 0 {
		fmt.Fprintln(tw, "ORDER\tTRANSACTION\tCUSTOMER\tPHONE\tTOTAL\tCREATED")
		for _, o := range orphans {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", o.OrderID, o.TransactionRef, o.CustomerName,
				o.CustomerPhone, o.TotalAmount.StringFixed(2), o.CreatedAt.Format(time.RFC3339))
		}
	}
	fmt.Fprintf(tw, "\nUNRECORDED PAYMENTS: %d\n", len(hazards))
	if len(hazards) > 0 {
		fmt.Fprintln(tw, "KIND\tORDER\tTRANSACTION\tCUSTOMER\tPHONE\tAMOUNT\tAT")
		for _, h := range hazards {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", h.Kind, h.OrderID, h.TransactionRef, h.CustomerName,
				h.CustomerPhone, h.Amount.StringFixed(2), h.CreatedAt.Format(time.RFC3339))
		}
	}
	return tw.Flush()
}
