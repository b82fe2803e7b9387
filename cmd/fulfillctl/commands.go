package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-fulfillment/internal/app"
	"github.com/angelmondragon/storefront-fulfillment/internal/fulfillment"
	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

type toolDeps struct {
	cfg      *config.Config
	logg     *logger.Logger
	services *app.App
	close    func() error
}

type loaderFunc func(ctx context.Context) (*toolDeps, error)

type cli struct {
	load loaderFunc
	rt   *toolDeps
	// operator recorded on stock movements
	actor string
}

func newRootCmd(load loaderFunc) *cobra.Command {
	c := &cli{load: load}
	root := &cobra.Command{
		Use:          "fulfillctl",
		Short:        "Produce, pack and reconcile storefront inventory",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load runtime: %w", err)
			}
			c.rt = rt
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.rt != nil && c.rt.close != nil {
				return c.rt.close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.actor, "actor", "", "user id recorded as performed_by")

	root.AddCommand(
		c.produceCmd(),
		c.packCmd(),
		c.adjustCmd(),
		c.reconcileCmd(),
		c.lowStockCmd(),
		c.deadLettersCmd(),
		c.tokenCmd(),
	)
	return root
}

func (c *cli) performedBy() (*uuid.UUID, error) {
	if c.actor == "" {
		return nil, nil
	}
	id, err := uuid.Parse(c.actor)
	if err != nil {
		return nil, fmt.Errorf("invalid --actor: %w", err)
	}
	return &id, nil
}

func (c *cli) produceCmd() *cobra.Command {
	var (
		productID string
		variantID string
		quantity  int
		note      string
	)
	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Consume raw materials to produce finished units",
		RunE: func(cmd *cobra.Command, _ []string) error {
			product, err := uuid.Parse(productID)
			if err != nil {
				return fmt.Errorf("invalid --product: %w", err)
			}
			input := fulfillment.ProduceInput{ProductID: product, Quantity: quantity, Note: note}
			if variantID != "" {
				variant, err := uuid.Parse(variantID)
				if err != nil {
					return fmt.Errorf("invalid --variant: %w", err)
				}
				input.VariantID = &variant
			}
			if input.PerformedBy, err = c.performedBy(); err != nil {
				return err
			}
			result, err := c.rt.services.Fulfillment.Produce(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "product id")
	cmd.Flags().StringVar(&variantID, "variant", "", "variant id")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "units to produce")
	cmd.Flags().StringVar(&note, "note", "", "note stored on the movements")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func (c *cli) packCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <order-id>...",
		Short: "Pack paid orders; each order succeeds or fails on its own",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid order id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
			actor, err := c.performedBy()
			if err != nil {
				return err
			}
			summary, err := c.rt.services.Fulfillment.Pack(cmd.Context(), fulfillment.PackInput{
				OrderIDs:    ids,
				PerformedBy: actor,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d orders failed to pack", summary.Failed, len(ids))
			}
			return nil
		},
	}
}

func (c *cli) adjustCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "adjust <material-id> <delta>",
		Short: "Apply a manual stock correction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			materialID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid material id: %w", err)
			}
			delta, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid delta: %w", err)
			}
			actor, err := c.performedBy()
			if err != nil {
				return err
			}
			material, err := c.rt.services.Materials.Adjust(cmd.Context(), materials.AdjustInput{
				MaterialID:  materialID,
				Delta:       delta,
				Note:        note,
				PerformedBy: actor,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"material_id":    material.ID,
				"name":           material.Name,
				"stock_quantity": material.StockQuantity,
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "reason for the correction")
	_ = cmd.MarkFlagRequired("note")
	return cmd
}

func (c *cli) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [material-id]",
		Short: "Compare stored stock with the movement ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				results []stockledger.Reconciliation
				err     error
			)
			if len(args) == 1 {
				id, parseErr := uuid.Parse(args[0])
				if parseErr != nil {
					return fmt.Errorf("invalid material id: %w", parseErr)
				}
				var one *stockledger.Reconciliation
				one, err = c.rt.services.Ledger.Reconcile(cmd.Context(), id)
				if one != nil {
					results = append(results, *one)
				}
			} else {
				results, err = c.rt.services.Ledger.ReconcileAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			drifted := 0
			for _, r := range results {
				if !r.Consistent {
					drifted++
				}
			}
			if drifted > 0 {
				return fmt.Errorf("%d materials drifted from the ledger", drifted)
			}
			return nil
		},
	}
}

func (c *cli) lowStockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "low-stock",
		Short: "List materials at or below their threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := c.rt.services.Materials.LowStock(cmd.Context())
			if err != nil {
				return err
			}
			type row struct {
				ID        uuid.UUID       `json:"id"`
				Name      string          `json:"name"`
				Stock     decimal.Decimal `json:"stock_quantity"`
				Threshold decimal.Decimal `json:"low_stock_threshold"`
			}
			out := make([]row, 0, len(rows))
			for _, m := range rows {
				out = append(out, row{ID: m.ID, Name: m.Name, Stock: m.StockQuantity, Threshold: m.LowStockThreshold})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
