package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
)

func (c *cli) deadLettersCmd() *cobra.Command {
	group := &cobra.Command{
		Use:   "dead-letters",
		Short: "Inspect and requeue outbox events the publisher gave up on",
	}

	var (
		reason string
		limit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := c.rt.services.Repos.DeadLetters.List(cmd.Context(), outbox.DeadLetterFilter{
				Reason: enums.OutboxDLQErrorReason(reason),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
	list.Flags().StringVar(&reason, "reason", "", "max_attempts or non_retryable")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	requeue := &cobra.Command{
		Use:   "requeue <event-id>...",
		Short: "Reset events so the publisher retries them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid event id %q: %w", arg, err)
				}
				if err := c.rt.services.Repos.DeadLetters.Requeue(cmd.Context(), id); err != nil {
					return fmt.Errorf("requeue %s: %w", id, err)
				}
				c.rt.logg.Info(c.rt.logg.WithField(cmd.Context(), "event_id", id.String()), "dead letter requeued")
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"requeued": len(args)})
		},
	}

	group.AddCommand(list, requeue)
	return group
}
