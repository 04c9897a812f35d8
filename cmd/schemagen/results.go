package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"schemagen/internal/adapter/repo"
	"schemagen/internal/bootstrap"
	"schemagen/pkg/zip"
)

func newResultsCmd(open openFunc) *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, open, func(c *bootstrap.Container) error {
				if cmd.Flags().Changed("id") {
					res, err := c.Results.GetByID(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("result %d: %w", id, err)
					}
					return printJSON(cmd.OutOrStdout(), res)
				}
				rows, err := c.Results.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "show a single result")
	cmd.AddCommand(newExportCmd(open))
	return cmd
}

func newExportCmd(open openFunc) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored result into a zip archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, open, func(c *bootstrap.Container) error {
				rows, err := c.Results.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				entries, err := repo.ArchiveEntries(rows)
				if err != nil {
					return err
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := zip.Write(f, entries); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d results to %s\n", len(entries), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "schema-results.zip", "archive path")
	return cmd
}
