package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/sw33tLie/gvmerge/pkg/generators"
	"github.com/sw33tLie/gvmerge/pkg/storage"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the conversations in a merge catalog.",
	Long:  "Prints statistics about the conversations in the catalog written by 'gvmerge merge --catalog'.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("catalog")
		if dbPath == "" {
			dbPath = filepath.Join(generators.LogsDir, generators.CatalogName)
		}
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("catalog not found: %s", dbPath)
		}

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(context.Background())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No conversations in the catalog.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ACTION\tCONVERSATIONS\tPARTICIPANTS\tMEDIA\tSIZE\t")

		var totalConversations, totalMedia int
		var totalBytes int64
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t\n", s.Action, s.Conversations, s.Participants, s.MediaCount, humanize.Bytes(uint64(s.Bytes)))
			totalConversations += s.Conversations
			totalMedia += s.MediaCount
			totalBytes += s.Bytes
		}

		fmt.Fprintln(w, " \t \t \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t \t%d\t%s\t\n", totalConversations, totalMedia, humanize.Bytes(uint64(totalBytes)))

		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().String("catalog", "", "Path to the catalog (default: logs/catalog.sqlite in CWD)")
}
