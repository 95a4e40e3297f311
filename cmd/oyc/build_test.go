package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oyc-lang/oyc"
)

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestRunBuildWritesOycbArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "prog.oyc", `return 2 + 3;`)

	buildCmd.Flags().Set("output", "")
	if err := runBuild(buildCmd, []string{path}); err != nil {
		t.Fatalf("runBuild error: %v", err)
	}

	outPath := filepath.Join(dir, "prog.oycb")
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", outPath, err)
	}

	prog, err := oyc.LoadProgram(data, outPath)
	if err != nil {
		t.Fatalf("LoadProgram error: %v", err)
	}
	m := oyc.New(nil)
	result, err := m.Run(prog, dir, nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if result != int64(5) {
		t.Fatalf("expected int64(5), got %#v", result)
	}
}

func TestRunBuildRespectsExplicitOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "prog.oyc", `return 1;`)
	customOut := filepath.Join(dir, "custom.oycb")

	buildCmd.Flags().Set("output", customOut)
	defer buildCmd.Flags().Set("output", "")
	if err := runBuild(buildCmd, []string{path}); err != nil {
		t.Fatalf("runBuild error: %v", err)
	}
	if _, err := os.Stat(customOut); err != nil {
		t.Fatalf("expected custom output path to exist: %v", err)
	}
}

func TestRunRunAbortsOnMaxFramesFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "recurse.oyc", `return require("recurse.oyc");`)

	runCmd.Flags().Set("trace", "false")
	runCmd.Flags().Set("inst-limit", "0")
	runCmd.Flags().Set("cache-require", "false")
	runCmd.Flags().Set("max-frames", "10")
	defer runCmd.Flags().Set("max-frames", "0")

	if err := runRun(runCmd, []string{path}); err == nil {
		t.Fatalf("expected --max-frames to abort unbounded require recursion")
	}
}

func TestRunRunExecutesScriptAndOycbArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "prog.oyc", `return 7;`)

	runCmd.Flags().Set("trace", "false")
	runCmd.Flags().Set("inst-limit", "0")
	runCmd.Flags().Set("cache-require", "false")
	if err := runRun(runCmd, []string{path}); err != nil {
		t.Fatalf("runRun on source script error: %v", err)
	}

	buildCmd.Flags().Set("output", "")
	if err := runBuild(buildCmd, []string{path}); err != nil {
		t.Fatalf("runBuild error: %v", err)
	}
	artifact := filepath.Join(dir, "prog.oycb")
	if err := runRun(runCmd, []string{artifact}); err != nil {
		t.Fatalf("runRun on .oycb artifact error: %v", err)
	}
}
