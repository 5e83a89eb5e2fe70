package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [base]",
	Short: "Dump all device memory to a file",
	Long: `Dump all device memory to a file.

The dump is written to the first unused <base>.<n> file, so repeated
dumps never overwrite one another.  The base defaults to dmpflash.dump.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := resolveDriver("")
		if err != nil {
			return err
		}

		f, done, err := newFlasher(dev)
		if err != nil {
			return err
		}
		defer done()

		base := "dmpflash.dump"
		if len(args) == 1 {
			base = args[0]
		}

		name, err := f.Dump(base)
		if err != nil {
			return err
		}

		logrus.Infof("wrote %s", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
