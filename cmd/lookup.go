package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/gvmerge/pkg/phonebook"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup NUMBER...",
	Short: "Resolve phone numbers against the contacts file",
	Long: `Resolve phone numbers against the contacts file with the configured matching strategy.
Useful to pick a suffix length before running a merge.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Flags given here win over the settings shared with merge.
		for _, name := range []string{"contacts", "match-strategy", "suffix-length"} {
			if f := cmd.Flags().Lookup(name); f.Changed {
				viper.Set(name, f.Value.String())
			}
		}
		if viper.GetString("contacts") == "" {
			return fmt.Errorf("--contacts is required")
		}

		pb, err := phoneBookFromConfig()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "QUERY\tNORMALIZED\tNAME\tMATCHED NUMBER\tMATCH LENGTH\t")
		for _, q := range args {
			m := pb.Get(q)
			name := m.Name
			if !m.Found() {
				name = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t\n", q, phonebook.Normalize(q), name, m.Number, m.Length)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringP("contacts", "c", "", "vCard file of the contacts")
	lookupCmd.Flags().String("match-strategy", string(phonebook.Exact), "Phone number matching strategy: exact or suffix")
	lookupCmd.Flags().Int("suffix-length", phonebook.DefaultSuffixLength, "Minimum number of trailing digits compared by the suffix strategy")
}
