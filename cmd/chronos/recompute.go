package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/saulo-duarte/chronos-goals/internal/container"
)

func recomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [goal-id]",
		Short: "Recompute the completion of a goal and its ancestors",
		Long: `Walks from the given goal up to its root and sets each goal's
completion to whether all of its direct children are complete.

Use it to repair ancestors left stale by a failed toggle.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid goal id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			c, err := container.New(ctx)
			if err != nil {
				return err
			}
			defer c.Close(context.Background())

			res, err := c.GoalContainer.Service.Recompute(ctx, id)
			if err != nil {
				return err
			}
			cmd.Printf("Recomputed %d goal(s)\n", len(res.Affected))
			for _, affected := range res.Affected {
				cmd.Println(" ", affected)
			}
			return nil
		},
	}
}
