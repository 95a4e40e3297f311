package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oyc-lang/oyc"
)

var errStyle = color.New(color.FgRed, color.Bold)

var runCmd = &cobra.Command{
	Use:   "run [flags] <file.oyc> [args...]",
	Short: "Compile and execute an oyc script",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Bool("trace", false, "print every instruction dispatched")
	runCmd.Flags().Int64("inst-limit", 0, "abort after this many instructions (0 = unlimited)")
	runCmd.Flags().Int("max-frames", 0, "abort once call/require recursion exceeds this depth (0 = library default)")
	runCmd.Flags().Bool("cache-require", false, "cache compiled require() targets to disk between runs")
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	scriptArgs := args[1:]

	trace, err := cmd.Flags().GetBool("trace")
	if err != nil {
		return err
	}
	instLimit, err := cmd.Flags().GetInt64("inst-limit")
	if err != nil {
		return err
	}
	maxFrames, err := cmd.Flags().GetInt("max-frames")
	if err != nil {
		return err
	}
	cacheRequire, err := cmd.Flags().GetBool("cache-require")
	if err != nil {
		return err
	}

	if cfg, err := loadProjectConfig(filepath.Dir(path)); err == nil && cfg != nil {
		if !cmd.Flags().Changed("inst-limit") && cfg.Run.InstLimit > 0 {
			instLimit = cfg.Run.InstLimit
		}
		if !cmd.Flags().Changed("max-frames") && cfg.Run.MaxFrames > 0 {
			maxFrames = cfg.Run.MaxFrames
		}
		if !cmd.Flags().Changed("cache-require") && cfg.Run.CacheRequire {
			cacheRequire = true
		}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var prog *oyc.Program
	if strings.HasSuffix(path, ".oycb") {
		prog, err = oyc.LoadProgram(src, path)
	} else {
		prog, err = oyc.Compile(string(src), path)
	}
	if err != nil {
		return reportError(path, err)
	}

	loader := fileLoader
	if cacheRequire {
		cache, err := openRequireCache()
		if err != nil {
			return err
		}
		defer cache.Close()
		loader = cache.wrap(fileLoader)
	}

	m := oyc.New(loader)
	if instLimit > 0 {
		m.SetInstructionLimit(instLimit)
	}
	if maxFrames > 0 {
		m.SetMaxFrames(maxFrames)
	}
	if trace {
		m.SetTraceHook(func(info oyc.TraceInfo) {
			fmt.Fprintf(os.Stderr, "%s:%d  ip=%d\n", info.Source, info.Line, info.IP)
		})
	}

	result, err := m.Run(prog, filepath.Dir(path), scriptArgs)
	if err != nil {
		return reportError(path, err)
	}
	if result != nil {
		fmt.Println(result)
	}
	return nil
}

func fileLoader(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func reportError(source string, err error) error {
	if rte, ok := err.(*oyc.RuntimeError); ok {
		errStyle.Fprintf(os.Stderr, "runtime error [%s]: %s\n", rte.ID, rte.Message)
		for _, fr := range rte.Stack {
			fmt.Fprintf(os.Stderr, "  at %s (%s:%d)\n", fr.Function, fr.Source, fr.Line)
		}
		return fmt.Errorf("%s: execution failed", source)
	}
	errStyle.Fprintf(os.Stderr, "%s: %s\n", source, err)
	return fmt.Errorf("%s: compilation failed", source)
}
