// cmd/beep/cmd/root.go
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamzrod/potentiostat/internal/config"
	"github.com/tamzrod/potentiostat/internal/controller"
	"github.com/tamzrod/potentiostat/internal/device"
	"github.com/tamzrod/potentiostat/internal/device/modbus"
	"github.com/tamzrod/potentiostat/internal/sim"
)

// Version is stamped at release.
var Version = "0.4.0"

var (
	// Global flags
	cfgPath string
	mock    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "beep",
	Short: "BEEP potentiostat acquisition engine",
	Long: `beep drives the BEEP potentiostat / galvanostat over its Modbus RTU link,
runs electrochemical techniques and streams the samples to CSV.

Configuration is read from beep.yml (see "beep mkconf"), then BEEP_ environment
variables, e.g. BEEP_LINK__PORT=/dev/ttyACM0.

Examples:
  beep modes                                   # List techniques
  beep modes cv                                # Parameters of cyclic voltammetry
  beep run ca --param potential=0.5 --param duration=10 --gain 2
  beep run --method cv.yml --mock              # Run a method file on the simulator
  beep serve                                   # HTTP control surface`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if mock {
			c.Mock.Enabled = true
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultFileName,
		"configuration file")
	rootCmd.PersistentFlags().BoolVar(&mock, "mock", false,
		"use the simulated instrument instead of the serial link")
}

// openController builds the device stack from cfg.
// The returned func releases the serial port.
func openController() (*controller.Controller, func(), error) {
	var (
		tr      device.Transport
		release = func() {}
	)
	if cfg.Mock.Enabled {
		log.Printf("beep: using simulated instrument (cell=%g ohm)", cfg.Mock.CellOhms)
		tr = sim.New(cfg.Mock.Sim())
	} else {
		cl, err := modbus.Connect(cfg.Link.Modbus())
		if err != nil {
			return nil, nil, err
		}
		log.Printf("beep: connected (port=%s slave=%d baud=%d)", cfg.Link.Port, cfg.Link.SlaveID, cfg.Link.BaudRate)
		tr = cl
		release = func() {
			if err := cl.Close(); err != nil {
				log.Printf("beep: close %s: %v", cfg.Link.Port, err)
			}
		}
	}

	dev, err := device.New(tr, device.WithRateLimit(cfg.Link.MaxRequestsPerSecond))
	if err != nil {
		release()
		return nil, nil, err
	}
	c, err := controller.New(dev, controller.Options{
		Settings:      cfg.Acquisition.Settings(),
		DefaultFolder: cfg.Output.DefaultFolder,
		QueueDepth:    cfg.Output.QueueDepth,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return c, release, nil
}
