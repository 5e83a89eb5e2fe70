// Package cmd implements the dmpflash command line interface.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/hwdbg/dmpflash/flash"
	"github.com/hwdbg/dmpflash/pmbus"
	"github.com/hwdbg/dmpflash/smbus"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "dmpflash",
	Short: "Flash and inspect Renesas digital multiphase PMBus controllers",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntP("bus", "b", 0, "i2c bus number")
	pf.Uint8P("address", "a", 0x60, "device i2c address")
	pf.StringP("driver", "d", "", "PMBus driver name")
	pf.DurationP("timeout", "t", 5*time.Second, "batch execution timeout")
	pf.BoolP("verbose", "v", false, "verbose output")

	viper.SetEnvPrefix("dmpflash")
	viper.AutomaticEnv()
	for _, name := range []string{"bus", "address", "driver", "timeout", "verbose"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// resolveDriver picks the PMBus driver from the --driver flag, falling
// back to the given model name when the flag is unset.
func resolveDriver(fallback string) (pmbus.Device, error) {
	name := viper.GetString("driver")
	if name == "" {
		name = fallback
	}
	if name == "" {
		return nil, errors.New("must specify --driver")
	}

	dev, ok := pmbus.FromString(name)
	if !ok {
		return nil, fmt.Errorf("unknown device driver %q", name)
	}
	return dev, nil
}

func progressLine(written, total int) {
	fmt.Fprintf(os.Stderr, "\r%d/%d bytes", written, total)
	if written >= total {
		fmt.Fprintln(os.Stderr)
	}
}

// newFlasher opens the i2c bus and builds a flasher for the device.  The
// returned closer releases the bus.
func newFlasher(dev pmbus.Device) (*flash.Flasher, func() error, error) {
	bus := viper.GetInt("bus")
	address := uint8(viper.GetUint("address"))

	xport, err := smbus.New(bus)
	if err != nil {
		return nil, nil, err
	}

	f, err := flash.New(xport, dev,
		flash.BaseOps(uint8(bus), 0, nil, nil, address),
		flash.WithLogger(logrus.StandardLogger()),
		flash.WithTimeout(viper.GetDuration("timeout")),
		flash.WithProgress(progressLine))
	if err != nil {
		xport.Close()
		return nil, nil, err
	}

	return f, xport.Close, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}
