package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/sw33tLie/gvmerge/pkg/generators"
	"github.com/sw33tLie/gvmerge/pkg/storage"
)

var catalogPath string

// catalogCmd represents the catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Interact with the catalog written by 'gvmerge merge --catalog'",
}

func resolveCatalogPath() (string, error) {
	if catalogPath == "" {
		catalogPath = filepath.Join(generators.LogsDir, generators.CatalogName)
	}
	if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
		return "", fmt.Errorf("catalog not found: %s", catalogPath)
	}
	return catalogPath, nil
}

// catalogShellCmd represents the shell command
var catalogShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveCatalogPath()
		if err != nil {
			return err
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the catalog shell")
		}

		fmt.Println("--> Catalog schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the merged conversations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbPath, err := resolveCatalogPath()
		if err != nil {
			return err
		}

		action, _ := cmd.Flags().GetString("action")
		number, _ := cmd.Flags().GetString("number")
		sinceStr, _ := cmd.Flags().GetString("since")

		opts := storage.ListOptions{Action: action, PhoneNumber: number}
		if sinceStr != "" {
			since, err := time.Parse(time.RFC3339, sinceStr)
			if err != nil {
				return fmt.Errorf("invalid --since value %q: %w", sinceStr, err)
			}
			opts.Since = since
		}

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		conversations, err := db.ListConversations(context.Background(), opts)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "LAST\tACTION\tPARTICIPANTS\tMERGED\tMEDIA\tSIZE\tPATH\t")
		for _, c := range conversations {
			var names []string
			for _, p := range c.Participants {
				if p.Name != "" {
					names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.PhoneNumber))
				} else {
					names = append(names, p.PhoneNumber)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t\n",
				c.LastAt.Format("2006-01-02 15:04:05"), c.Action, strings.Join(names, ", "),
				c.MergedCount+1, c.MediaCount, humanize.Bytes(uint64(c.FileSize+c.MediaSize)), c.Path)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogShellCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to the catalog (default: logs/catalog.sqlite in CWD)")

	catalogListCmd.Flags().String("action", "", "Only list conversations started by this action (Text, Voicemail, Group Conversation...)")
	catalogListCmd.Flags().String("number", "", "Only list conversations with a participant matching this number")
	catalogListCmd.Flags().String("since", "", "Only list conversations active since this RFC3339 timestamp")
}
