package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koustreak/aigis/internal/errs"
)

func describeCmd(withApp appRunner) *cobra.Command {
	var f refFlags
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the schema summary an agent would see",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			summary := a.resolver.Describe(ctx, f.ref())
			if summary == "" {
				return errors.New("schema summary unavailable")
			}
			_, err := cmd.OutOrStdout().Write([]byte(summary))
			return err
		}),
	}
	f.bind(cmd)
	return cmd
}

func execCmd(withApp appRunner) *cobra.Command {
	var (
		f       refFlags
		sqlText string
	)
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run one SQL statement and print the JSON result",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			text, err := a.executor.Run(ctx, f.ref(), sqlText)
			if err != nil {
				return errors.New(errs.UserMessage(err))
			}
			writeLine(cmd.OutOrStdout(), text)
			return nil
		}),
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&sqlText, "sql", "", "statement to run")
	_ = cmd.MarkFlagRequired("sql")
	return cmd
}

// staticAuthor stands in for the language model: it always writes the SQL
// it was given.
type staticAuthor string

func (s staticAuthor) WriteSQL(context.Context, string, string) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

func askCmd(withApp appRunner) *cobra.Command {
	var (
		f       refFlags
		sqlText string
	)
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run SQL through the agent tool path and print the answer the agent receives",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			ans := a.tool(staticAuthor(sqlText)).AskDatabase(ctx, f.ref(), "")
			return printJSON(cmd.OutOrStdout(), ans)
		}),
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&sqlText, "sql", "", "statement to run")
	_ = cmd.MarkFlagRequired("sql")
	return cmd
}

func testCmd(withApp appRunner) *cobra.Command {
	var f refFlags
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check that a connection can be opened and answers SELECT 1",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			if err := a.resolver.TestConnection(ctx, f.ref()); err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "ok")
			return nil
		}),
	}
	f.bind(cmd)
	return cmd
}
