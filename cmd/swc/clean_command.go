package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"swc/internal/workspace"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove workspaces left behind by interrupted runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			manager := workspace.NewManager(cfg.Paths.WorkspaceDir, logger)
			out := cmd.OutOrStdout()

			if list {
				dirs, err := manager.List()
				if err != nil {
					return err
				}
				if len(dirs) == 0 {
					fmt.Fprintln(out, "No workspaces")
					return nil
				}
				rows := make([][]string, 0, len(dirs))
				for _, d := range dirs {
					rows = append(rows, []string{d.Name, yesNo(d.InUse), strconv.FormatInt(d.Size, 10), d.ModTime.Format("2006-01-02 15:04")})
				}
				fmt.Fprintln(out, renderTable([]tableColumn{
					{Header: "Job"},
					{Header: "In use"},
					{Header: "Bytes", Align: text.AlignRight},
					{Header: "Modified"},
				}, rows))
				return nil
			}

			result := manager.SweepOrphans(cmd.Context())
			for _, name := range result.Removed {
				fmt.Fprintf(out, "removed %s\n", name)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to remove %s: %v\n", e.Path, e.Error)
			}
			fmt.Fprintf(out, "Removed %d workspace(s), %d in use\n", len(result.Removed), len(result.InUse))
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d workspace(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List workspaces without removing anything")
	return cmd
}
