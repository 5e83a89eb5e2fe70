package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Report the number of available NVM slots",
	Args:  cobra.NoArgs,
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

		slots, err := f.Slots()
		if err != nil {
			return err
		}

		logrus.Infof("%d NVM slots remain", slots)
		return nil
	},
}

var crcCmd = &cobra.Command{
	Use:   "crc",
	Short: "Report the device OTP CRC",
	Args:  cobra.NoArgs,
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

		crc, err := f.CRC()
		if err != nil {
			return err
		}

		logrus.Infof("OTP CRC is 0x%08x", crc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(crcCmd)
}
