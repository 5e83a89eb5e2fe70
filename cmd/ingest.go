package cmd

import (
	"os"

	"github.com/hwdbg/dmpflash/gen"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	ingestPackage string
	ingestOutput  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <config.txt>",
	Short: "Generate Go source from a Power Navigator configuration dump",
	Long: `Generate Go source from a Power Navigator configuration dump.

The generated file declares the configuration payload as a table of
PMBus writes plus an iterator over it, ready to embed in tooling that
replays the configuration.  An APPLY_SETTINGS write is appended so the
configuration takes effect.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := resolveDriver("")
		if err != nil {
			return err
		}

		packets, err := gen.Ingest(args[0], dev)
		if err != nil {
			return err
		}

		out := os.Stdout
		if ingestOutput != "" {
			out, err = os.Create(ingestOutput)
			if err != nil {
				return errors.Wrap(err, "create output")
			}
			defer out.Close()
		}

		return gen.Generate(out, dev, ingestPackage, packets)
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestPackage, "package", "p", "payload",
		"package name for the generated source")
	ingestCmd.Flags().StringVarP(&ingestOutput, "output", "o", "",
		"output file (default stdout)")
	rootCmd.AddCommand(ingestCmd)
}
