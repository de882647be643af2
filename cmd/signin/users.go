package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-signin/fallback/legacy"
	"github.com/goliatone/go-signin/provider/local"
)

// NewUsersCmd creates the users subcommand.
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage local accounts",
	}

	var msg local.RegisterUserMessage

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a local account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := OpenDB(ctxOrBackground(cmd), cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			handler := local.NewRegisterUserHandler(local.NewUsersRepository(db))
			handler.OnCreate = func(u *local.User) {
				cmd.Printf("created %s (%s)\n", u.Email, u.ID)
			}

			return handler.Execute(ctxOrBackground(cmd), msg)
		},
	}

	add.Flags().StringVar(&msg.Email, "email", "", "account email")
	add.Flags().StringVar(&msg.Password, "password", "", "account password")
	add.Flags().BoolVar(&msg.Disabled, "disabled", false, "create the account disabled")
	add.Flags().BoolVar(&msg.UseHashid, "hashid", false, "derive the account id from the email")

	cmd.AddCommand(add)
	return cmd
}

// NewLegacyCmd creates the legacy subcommand.
func NewLegacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Manage legacy credentials",
	}

	var email, password string

	add := &cobra.Command{
		Use:   "add",
		Short: "Store a legacy credential to migrate on first sign-in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			hash, err := local.HashPassword(password)
			if err != nil {
				return err
			}

			db, err := OpenDB(ctxOrBackground(cmd), cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			account, err := legacy.NewAccountsRepository(db).Add(ctxOrBackground(cmd), email, hash)
			if err != nil {
				return err
			}

			cmd.Printf("stored legacy credential for %s\n", account.Email)
			return nil
		},
	}

	add.Flags().StringVar(&email, "email", "", "account email")
	add.Flags().StringVar(&password, "password", "", "legacy password")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := OpenDB(ctxOrBackground(cmd), cfg.Database.DSN)
			if err != nil {
				return err
			}
			cmd.Println("schema up to date")
			return db.Close()
		},
	}
}

func ctxOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
