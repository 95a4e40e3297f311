package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oyc-lang/oyc/internal/compiler"
	"github.com/oyc-lang/oyc/internal/lexer"
	"github.com/oyc-lang/oyc/internal/parser"
	"github.com/oyc-lang/oyc/internal/vm"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file.oyc>",
	Short: "Compile a script and print its bytecode",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func runDisasm(cmd *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	p := parser.New(lexer.New(string(src)))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			errStyle.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("%s: parse failed", path)
	}

	mod, err := compiler.Compile(prog, path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return vm.DisassembleModule(os.Stdout, mod)
}
