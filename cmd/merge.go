package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/gvmerge/internal/utils"
	"github.com/sw33tLie/gvmerge/pkg/entries"
	"github.com/sw33tLie/gvmerge/pkg/generators"
	"github.com/sw33tLie/gvmerge/pkg/merger"
	"github.com/sw33tLie/gvmerge/pkg/phonebook"
)

// mergeCmd implements: gvmerge merge -i <takeout/Voice/Calls> -o <dir>
//
// Every flag can also be set in the config file or as a GVMERGE_* environment
// variable, using the flag name as the key.
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge the calls, texts and voicemails of an export",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		inputDir := viper.GetString("input")
		outputDir := viper.GetString("output")
		if inputDir == "" || outputDir == "" {
			return fmt.Errorf("both --input and --output are required")
		}

		pb, err := phoneBookFromConfig()
		if err != nil {
			return err
		}

		factory := entries.NewFactory(pb, entries.FactoryOptions{
			TolerateMissingParticipants: viper.GetBool("tolerate-missing-participants"),
		})

		var gens []generators.Generator
		if viper.GetBool("csv") {
			gens = append(gens, generators.NewCSVIndex(outputDir, pb))
		}
		if viper.GetBool("xml") {
			gens = append(gens, generators.NewSMSBackup(outputDir, pb))
		}
		if viper.GetBool("catalog") {
			gens = append(gens, generators.NewCatalog(outputDir, pb))
		}

		opts := merger.Options{
			InputDir:               inputDir,
			OutputDir:              outputDir,
			Force:                  viper.GetBool("force"),
			IgnoreCallLogs:         viper.GetBool("ignore-call-logs"),
			IgnoreOrphanCallLogs:   viper.GetBool("ignore-orphan-call-logs"),
			IgnoreMedia:            viper.GetBool("ignore-media"),
			IgnoreVoicemails:       viper.GetBool("ignore-voicemails"),
			IgnoreOrphanVoicemails: viper.GetBool("ignore-orphan-voicemails"),
			Generators:             gens,
		}

		stats, err := merger.New(factory, pb, opts).Merge(cmd.Context())
		if err != nil {
			return err
		}

		printSummary(os.Stdout, stats, opts)
		return nil
	},
}

// phoneBookFromConfig loads the contacts named by the "contacts" setting, or
// returns an empty phone book when there are none.
func phoneBookFromConfig() (*phonebook.PhoneBook, error) {
	opts := phonebook.Options{
		Strategy:     phonebook.Strategy(viper.GetString("match-strategy")),
		SuffixLength: viper.GetInt("suffix-length"),
	}
	contacts := viper.GetString("contacts")
	if contacts == "" {
		utils.Log.Warn("No contacts file given, names will not be resolved")
	}
	return phonebook.New(contacts, opts)
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringP("input", "i", "", "Directory of the exported calls (Takeout/Voice/Calls)")
	mergeCmd.Flags().StringP("output", "o", "", "Output directory")
	mergeCmd.Flags().BoolP("force", "f", false, "Remove the output directory if it already exists")
	mergeCmd.Flags().StringP("contacts", "c", "", "vCard file of the contacts used to resolve names")
	mergeCmd.Flags().String("match-strategy", string(phonebook.Exact), "Phone number matching strategy: exact or suffix")
	mergeCmd.Flags().Int("suffix-length", phonebook.DefaultSuffixLength, "Minimum number of trailing digits compared by the suffix strategy")
	mergeCmd.Flags().Bool("ignore-call-logs", false, "Ignore received, placed and missed call logs")
	mergeCmd.Flags().Bool("ignore-orphan-call-logs", false, "Ignore conversations made only of call logs")
	mergeCmd.Flags().Bool("ignore-media", false, "Ignore media attachments")
	mergeCmd.Flags().Bool("ignore-voicemails", false, "Ignore voicemails and their recordings")
	mergeCmd.Flags().Bool("ignore-orphan-voicemails", false, "Ignore conversations made only of voicemails")
	mergeCmd.Flags().Bool("tolerate-missing-participants", false, "Group conversations without participants under \"Unknown\" instead of failing")
	mergeCmd.Flags().Bool("csv", false, "Write logs/index.csv")
	mergeCmd.Flags().Bool("xml", false, "Write sms.xml for SMS Backup & Restore")
	mergeCmd.Flags().Bool("catalog", false, "Write logs/catalog.sqlite")

	if err := viper.BindPFlags(mergeCmd.Flags()); err != nil {
		utils.Log.Fatal(err)
	}
}
