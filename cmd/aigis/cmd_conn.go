package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/tenant"
)

func connCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conn",
		Short: "Manage stored connection records",
	}
	cmd.AddCommand(connAddCmd(withApp), connListCmd(withApp), connRemoveCmd(withApp))
	return cmd
}

func connAddCmd(withApp appRunner) *cobra.Command {
	var (
		user  int64
		email string
		in    tenant.CreateInput
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a connection; the password is encrypted before it is stored",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			if kind, err := database.ParseKind(in.DBKind); err == nil && kind == database.KindCustom {
				if in.DatabaseName == "" {
					in.DatabaseName = tenant.SchemaName(email, user)
				}
				if s, ok := a.store.(schemaEnsurer); ok {
					if err := s.EnsureTenantSchema(ctx, in.DatabaseName); err != nil {
						return err
					}
				}
			}
			view, err := a.service.Register(ctx, user, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		}),
	}
	fl := cmd.Flags()
	fl.Int64Var(&user, "user", 0, "owning user id")
	fl.StringVar(&email, "email", "", "user email, used to derive the schema of custom connections")
	fl.StringVar(&in.Name, "name", "", "display name")
	fl.StringVar(&in.DBKind, "kind", "", "sqlite, postgres or custom")
	fl.StringVar(&in.Host, "host", "", "host, or file path for sqlite")
	fl.IntVar(&in.Port, "port", 0, "port")
	fl.StringVar(&in.Username, "username", "", "login user")
	fl.StringVar(&in.Password, "password", "", "login password")
	fl.StringVar(&in.DatabaseName, "database", "", "database name, or schema for custom")
	fl.StringVar(&in.TableName, "table", "", "imported table (custom only)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func connListCmd(withApp appRunner) *cobra.Command {
	var user int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's connections, newest first",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			views, err := a.service.List(ctx, user)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), views)
		}),
	}
	cmd.Flags().Int64Var(&user, "user", 0, "owning user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func connRemoveCmd(withApp appRunner) *cobra.Command {
	var user int64
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a connection record",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return a.service.Delete(ctx, user, id)
		}),
	}
	cmd.Flags().Int64Var(&user, "user", 0, "owning user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func schemaNameCmd() *cobra.Command {
	var (
		email string
		user  int64
	)
	cmd := &cobra.Command{
		Use:   "schema-name",
		Short: "Print the per-tenant schema name for custom imports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			writeLine(cmd.OutOrStdout(), tenant.SchemaName(email, user))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().Int64Var(&user, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
