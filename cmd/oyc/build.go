package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oyc-lang/oyc"
)

var buildCmd = &cobra.Command{
	Use:   "build <file.oyc>",
	Short: "Compile a script to a .oycb bytecode artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "output path (default: <file> with .oycb extension)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	path := args[0]
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if out == "" {
		if cfg, cerr := loadProjectConfig(filepath.Dir(path)); cerr == nil && cfg != nil && cfg.Build.Output != "" {
			out = cfg.Build.Output
		} else {
			out = strings.TrimSuffix(path, ".oyc") + ".oycb"
		}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	prog, err := oyc.Compile(string(src), path)
	if err != nil {
		return reportError(path, err)
	}

	data, err := oyc.MarshalModule(prog)
	if err != nil {
		return fmt.Errorf("%s: serializing bytecode: %w", path, err)
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(os.Stdout, "wrote %s\n", out)
	}
	return nil
}
