package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medicorex/hms/internal/domain/identity"
	"github.com/medicorex/hms/internal/platform/auth"
	"github.com/medicorex/hms/internal/platform/idgen"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user, typically the first admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(txRunner(pool, cfg, logger), identity.NewRepoPG(pool),
				idgen.NewPGGenerator(), nil, logger)
			u, err := svc.CreateUser(ctx, identity.NewUser{Username: username, Password: password, Role: role})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s (%s)\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Password")
	createCmd.Flags().String("role", auth.RoleAdmin, "Role: admin, doctor or receptionist")
	cmd.AddCommand(createCmd)

	return cmd
}
