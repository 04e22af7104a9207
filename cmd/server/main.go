package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"directory-admin-service/internal/app"
	"directory-admin-service/internal/config"
	"directory-admin-service/internal/observability"
	"directory-admin-service/internal/tools/authcheck"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "directory-admin-service",
		Short: "Directory backend with unified authentication and an admin console",
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newCreateSuperuserCommand(),
		newPermissionCommand(),
		authcheck.NewRootCommand(),
	)
	return root
}

// buildApp loads configuration and assembles the service; shared by every
// command that needs the dependency graph.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.NewBaseLogger(cfg)
	return app.New(ctx, cfg, logger)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and serve HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			if err := a.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return a.Run(ctx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			if err := a.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func newCreateSuperuserCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Provision an admin console account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			if err := a.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			user, err := a.Users.CreateSuperuser(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Printf("superuser created: %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newPermissionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Manage per-user permissions",
	}
	cmd.AddCommand(newGrantCommand(), newRevokeCommand(), newListCommand())
	return cmd
}

func newGrantCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <user-id> <name>",
		Short: "Grant a permission, creating it if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			changed, err := a.Permissions.Assign(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if changed {
				fmt.Printf("granted %q to %s\n", args[1], args[0])
			} else {
				fmt.Printf("%s already holds %q\n", args[0], args[1])
			}
			return nil
		},
	}
}

func newRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <user-id> <name>",
		Short: "Revoke a permission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			changed, err := a.Permissions.Revoke(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if changed {
				fmt.Printf("revoked %q from %s\n", args[1], args[0])
			} else {
				fmt.Printf("%s does not hold %q\n", args[0], args[1])
			}
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			names, err := a.Permissions.List(ctx, args[0])
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("(none)")
				return nil
			}
			fmt.Println(strings.Join(names, "\n"))
			return nil
		},
	}
}
