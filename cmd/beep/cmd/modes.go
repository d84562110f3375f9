// cmd/beep/cmd/modes.go
package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tamzrod/potentiostat/internal/mode"
)

var outputJSON bool

var modesCmd = &cobra.Command{
	Use:   "modes [mode]",
	Short: "List techniques or show the parameters of one",
	Long: `Without an argument, list every technique with its control family.
With a technique code, list its parameters and units.

Examples:
  beep modes
  beep modes gcv --json`,
	Args:             cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	RunE:             runModes,
}

func init() {
	rootCmd.AddCommand(modesCmd)

	modesCmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
}

func runModes(cmd *cobra.Command, args []string) error {
	reg := mode.NewRegistry()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		type row struct {
			Code        mode.Code   `json:"code"`
			Family      mode.Family `json:"family"`
			Description string      `json:"description"`
		}
		var rows []row
		for _, c := range reg.Available() {
			fam, _ := reg.Family(string(c))
			desc, _ := reg.Description(string(c))
			rows = append(rows, row{c, fam, desc})
		}
		if outputJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Code, r.Family, r.Description)
		}
		return tw.Flush()
	}

	code, err := reg.Lookup(args[0])
	if err != nil {
		return err
	}
	fields, _ := reg.Params(string(code))
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	}
	desc, _ := reg.Description(string(code))
	fmt.Fprintf(out, "%s: %s\n\n", code, desc)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, f.Kind, f.Unit)
	}
	return tw.Flush()
}
