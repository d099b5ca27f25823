package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/koustreak/aigis/internal/config"
	"github.com/koustreak/aigis/internal/resolver"
)

// loadConfig is swapped in tests.
var loadConfig = func(path string) (config.Config, error) {
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		return config.Config{}, err
	}
	// stdout carries command output
	cfg.Log.Output = os.Stderr
	return cfg, nil
}

type refFlags struct {
	user  int64
	conns []int64
}

func (f *refFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.user, "user", 0, "owning user id")
	cmd.Flags().Int64SliceVar(&f.conns, "conn", nil, "connection id (repeat for custom tables sharing a schema)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("conn")
}

func (f *refFlags) ref() resolver.Reference {
	ref := resolver.Reference{UserID: f.user}
	if len(f.conns) == 1 {
		ref.ConnectionID = f.conns[0]
	} else {
		ref.ConnectionIDs = f.conns
	}
	return ref
}

func rootCmd() *cobra.Command {
	var cfgPath string

	cobra.EnableCommandSorting = false
	root := &cobra.Command{
		Use:           "aigis",
		Short:         "Multi-tenant database connection resolver and SQL runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")

	withApp := func(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			return run(ctx, a, cmd, args)
		}
	}

	root.AddCommand(serveCmd(withApp))
	root.AddCommand(describeCmd(withApp))
	root.AddCommand(execCmd(withApp))
	root.AddCommand(askCmd(withApp))
	root.AddCommand(testCmd(withApp))
	root.AddCommand(connCmd(withApp))
	root.AddCommand(schemaNameCmd())
	return root
}

type appRunner = func(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeLine(w io.Writer, s string) {
	fmt.Fprintln(w, s)
}
