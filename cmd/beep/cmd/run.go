// cmd/beep/cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/theckman/yacspin"
	"gopkg.in/yaml.v3"

	"github.com/tamzrod/potentiostat/internal/controller"
	"github.com/tamzrod/potentiostat/internal/device"
	"github.com/tamzrod/potentiostat/internal/poller"
	"github.com/tamzrod/potentiostat/internal/status"
)

var (
	methodFile string
	params     []string
	gain       int
	interval   float64
	outFile    string
	outFolder  string
	quiet      bool
)

var runCmd = &cobra.Command{
	Use:   "run [mode]",
	Short: "Run one measurement and write it to CSV",
	Long: `Run one technique to completion. Parameters come from a method file, from
--param flags, or both; flags win over the file.

Ctrl-C cancels the run; the cell is still switched off.

A method file is YAML:

  mode: CV
  gain: 2
  sampling_interval: 0.01
  params:
    start: -0.5
    vertex1: 0.5
    vertex2: -0.5
    end: 0
    scan_rate: 0.1
    cycles: 3

Examples:
  beep run ca --param potential=0.4 --param duration=30
  beep run pstep --param potentials=0.1,0.2,0.3 --param step_duration=5
  beep run --method cv.yml --folder ./data`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMeasurement,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&methodFile, "method", "m", "", "YAML method file")
	runCmd.Flags().StringArrayVarP(&params, "param", "p", nil, "technique parameter as name=value (repeatable)")
	runCmd.Flags().IntVarP(&gain, "gain", "g", 0, fmt.Sprintf("TIA gain index 0..%d", int(device.MaxGain)))
	runCmd.Flags().Float64VarP(&interval, "interval", "i", 0, "sampling interval in seconds (0 keeps every sample)")
	runCmd.Flags().StringVarP(&outFile, "file", "f", "", "output file name")
	runCmd.Flags().StringVar(&outFolder, "folder", "", "output folder")
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress spinner")
}

func buildRequest(cmd *cobra.Command, args []string) (controller.Request, error) {
	var req controller.Request
	if methodFile != "" {
		b, err := os.ReadFile(methodFile)
		if err != nil {
			return req, err
		}
		if err := yaml.Unmarshal(b, &req); err != nil {
			return req, fmt.Errorf("method %s: %w", methodFile, err)
		}
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}

	if len(args) == 1 {
		req.Mode = args[0]
	}
	if req.Mode == "" {
		return req, errors.New("no technique given (argument or method file)")
	}

	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return req, fmt.Errorf("--param %q: want name=value", p)
		}
		// decoding converts the text to the schema type
		req.Params[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	f := cmd.Flags()
	if f.Changed("gain") {
		req.Gain = gain
	}
	if f.Changed("interval") {
		req.SamplingInterval = interval
	}
	if f.Changed("file") {
		req.Filename = outFile
	}
	if f.Changed("folder") {
		req.Folder = outFolder
	}
	return req, nil
}

func runMeasurement(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd, args)
	if err != nil {
		return err
	}

	c, release, err := openController()
	if err != nil {
		return err
	}
	defer release()

	// reject bad requests before the spinner starts
	if err := c.Check(req); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var spin *yacspin.Spinner
	if !quiet {
		spin, err = newSpinner()
		if err != nil {
			return err
		}
		if err := spin.Start(); err != nil {
			return err
		}
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if spin != nil {
		w, err := poller.New(poller.Config{Interval: 200 * time.Millisecond, ChangesOnly: true}, c)
		if err != nil {
			return err
		}
		updates := make(chan poller.Result, 1)
		go w.Run(watchCtx, updates)
		go func() {
			for res := range updates {
				spin.Message(progress(res.Snapshot))
			}
		}()
	}

	rep, err := c.ApplyMeasurement(ctx, req)
	stopWatch()

	if spin != nil {
		if err != nil {
			spin.StopFailMessage(err.Error())
			_ = spin.StopFail()
		} else {
			spin.StopMessage(fmt.Sprintf("%d rows -> %s", rep.Rows, rep.Path))
			_ = spin.Stop()
		}
	}
	if err != nil {
		return err
	}
	if quiet {
		fmt.Fprintln(cmd.OutOrStdout(), rep.Path)
	}
	return nil
}

func newSpinner() (*yacspin.Spinner, error) {
	return yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " measuring",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
}

func progress(s status.Snapshot) string {
	return fmt.Sprintf("%s %s exp %d, %.0f%% (%d/%d samples, %d write / %d read errors)",
		s.Mode, s.State, s.Experiment, 100*s.Progress(),
		s.Samples, s.SamplesTotal, s.WriteErrors, s.ReadErrors)
}
