package commands

import (
	"context"
	"fmt"
	"gymbook/internal/repository/mongo"
	"gymbook/internal/service"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token [username]",
	Short: "Mint a bearer token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
		accounts, err := e.accounts()
		if err != nil {
			return err
		}
		token, principal, err := accounts.IssueToken(ctx, args[0])
		if err != nil {
			return fmt.Errorf("issue token for %q: %w", args[0], err)
		}
		e.logger.Info("Token issued", "user_id", principal.ID.Hex(), "role", principal.Role, "expires_in", e.cfg.JWT.Expiration.String())
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	}),
}

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the MongoDB indexes the service relies on",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
		if err := mongo.EnsureIndexes(ctx, e.db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Indexes are in place.")
		return nil
	}),
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass over queued partial writes",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
		reconciler := service.NewReconciler(e.sessions, e.trainers, e.visitors, e.reviews, e.reconciliations, e.logger)
		resolved, failed, err := reconciler.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Resolved %d, failed %d\n", resolved, failed)
		return nil
	}),
}
