// Command oyc runs, disassembles, and compiles oyc scripts (spec.md).
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oyc-lang/oyc/internal/version"
)

var errColor = color.New(color.FgRed, color.Bold)

var rootCmd = &cobra.Command{
	Use:   "oyc",
	Short: "oyc language runner and toolchain",
	Long:  `oyc compiles and runs oyc scripts: a dynamically-typed, C-syntax language with a register-based bytecode VM.`,
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(buildCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		switch mode, _ := cmd.Flags().GetString("color"); mode {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		errColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
