package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestRunDisasmPrintsOpcodeMnemonics(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "prog.oyc", `return 2 + 3;`)

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	runErr := runDisasm(disasmCmd, []string{path})
	w.Close()
	os.Stdout = oldStdout
	if runErr != nil {
		t.Fatalf("runDisasm error: %v", runErr)
	}

	var buf bytes.Buffer
	buf.ReadFrom(r)
	out := buf.String()
	if !strings.Contains(out, "ADD") || !strings.Contains(out, "RETURN") {
		t.Fatalf("expected disassembly to mention ADD/RETURN, got:\n%s", out)
	}
}

func TestRunDisasmRejectsUnparseableScript(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "bad.oyc", `auto x = ;`)
	if err := runDisasm(disasmCmd, []string{path}); err == nil {
		t.Fatalf("expected a parse error")
	}
}
