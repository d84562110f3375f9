// cmd/beep/cmd/conf.go
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tamzrod/potentiostat/internal/config"
)

var force bool

var confCmd = &cobra.Command{
	Use:   "conf",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and BEEP_ environment
variables were applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeYAML(cmd.OutOrStdout(), cfg)
	},
}

var mkconfCmd = &cobra.Command{
	Use:   "mkconf",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to the --config path (beep.yml by default).
An existing file is kept unless --force is given.`,
	Args:             cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil && !force {
			return fmt.Errorf("%s exists, use --force to overwrite", cfgPath)
		}
		if err := writeDefaultConfig(cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(confCmd)
	rootCmd.AddCommand(mkconfCmd)

	mkconfCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
}

// writeDefaultConfig writes Default() to path, reporting a failed close.
func writeDefaultConfig(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	def := config.Default()
	return writeYAML(f, &def)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
