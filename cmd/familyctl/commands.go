package main

import (
	"context"
	"fmt"

	"github.com/go-pregnancy-family/internal/domain"
	"github.com/spf13/cobra"
)

type userAdmin interface {
	Disable(ctx context.Context, userID string) (*domain.User, error)
	Enable(ctx context.Context, userID string) (*domain.User, error)
}

type runtime struct {
	bootstrap func(ctx context.Context) int
	users     userAdmin
}

// loader is called only once a command actually runs, so --help works offline.
type loader func() (*runtime, error)

func newRootCmd(load loader) *cobra.Command {
	root := &cobra.Command{
		Use:          "familyctl",
		Short:        "Operate the pregnancy family backend",
		SilenceUsage: true,
	}
	root.AddCommand(newBootstrapCmd(load), newUserCmd(load))
	return root
}

func newBootstrapCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create missing DynamoDB tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			if failed := rt.bootstrap(cmd.Context()); failed > 0 {
				return fmt.Errorf("%d table(s) could not be created", failed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tables ready")
			return nil
		},
	}
}

func newUserCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(
		statusCmd(load, "disable", "Disable a user and revoke their sessions", userAdmin.Disable),
		statusCmd(load, "enable", "Re-enable a disabled user", userAdmin.Enable),
	)
	return cmd
}

func statusCmd(load loader, use, short string, apply func(userAdmin, context.Context, string) (*domain.User, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			u, err := apply(rt.users, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) status=%d\n", u.UserID, u.Phone, u.Status)
			return nil
		},
	}
}
