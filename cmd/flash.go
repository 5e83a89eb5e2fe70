package cmd

import (
	"github.com/hwdbg/dmpflash/flash"
	"github.com/hwdbg/dmpflash/hexfile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flashCheck  bool
	flashDryRun bool
	flashForce  bool
)

var flashCmd = &cobra.Command{
	Use:   "flash <image.hex>",
	Short: "Flash a configuration image into device NVM",
	Long: `Flash a configuration image into device NVM.

The image is a hex file exported from the Renesas configuration software.
It names the target model and i2c address; both are checked against the
attached device before anything is written.  Flashing consumes one NVM
slot and the device must be power cycled afterwards to load the new
configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := hexfile.Parse(args[0], uint8(viper.GetUint("address")))
		if err != nil {
			return err
		}

		dev, err := resolveDriver(img.Device.String())
		if err != nil {
			return err
		}

		f, done, err := newFlasher(dev)
		if err != nil {
			return err
		}
		defer done()

		return f.Flash(img, flash.FlashOptions{
			Check:  flashCheck,
			DryRun: flashDryRun,
			Force:  flashForce,
		})
	},
}

func init() {
	flashCmd.Flags().BoolVarP(&flashCheck, "check", "C", false,
		"compare the image CRC against the OTP CRC and exit")
	flashCmd.Flags().BoolVarP(&flashDryRun, "dry-run", "n", false,
		"transmit the image without programming the OTP")
	flashCmd.Flags().BoolVarP(&flashForce, "force", "F", false,
		"flash even if the image CRC matches the OTP CRC")
	rootCmd.AddCommand(flashCmd)
}
