package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/bpdoc/pkg/document"
	"github.com/matzehuels/bpdoc/pkg/sink"
)

// indexCommand creates the index command.
func (c *CLI) indexCommand() *cobra.Command {
	var (
		out    outputFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Show the index of exported documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := out.apply(cmd, c.config)
			if err != nil {
				return err
			}
			o, err := c.openOutput(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer o.Close()

			data, err := sink.ReadIndex(cmd.Context(), o.sink)
			if err != nil {
				return fmt.Errorf("read index from %s: %w", o.where, err)
			}
			if asJSON {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			idx, err := document.UnmarshalIndex(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderIndex(idx))
			printDetail("%d artifacts in %s", idx.Count, o.where)
			return nil
		},
	}
	out.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw index document")
	return cmd
}

// renderIndex renders index entries as a table.
func renderIndex(idx document.Index) string {
	rows := make([][]string, 0, len(idx.Artifacts))
	for _, e := range idx.Artifacts {
		rows = append(rows, []string{
			e.Path,
			strconv.Itoa(e.Graphs),
			strconv.Itoa(e.Nodes),
			strconv.Itoa(e.Variables),
			strconv.Itoa(e.Functions),
			strconv.Itoa(e.Components),
			strconv.Itoa(e.Dependencies),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Path", "Graphs", "Nodes", "Vars", "Funcs", "Comps", "Deps").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return StyleValue.Padding(0, 1)
			}
			return StyleNumber.Padding(0, 1).Align(lipgloss.Right)
		})
	return t.Render()
}
