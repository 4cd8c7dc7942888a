// Command pyro is Pyro's CLI: it runs source files, drops into an
// interactive REPL, and disassembles compiled output, wiring
// pkg/lexer, pkg/compiler, pkg/gc and pkg/vm together the same way any
// embedder would.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/pyro-lang/pyro/pkg/bytecode"
	"github.com/pyro-lang/pyro/pkg/compiler"
	"github.com/pyro-lang/pyro/pkg/gc"
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/vm"
)

const version = "0.1.0"

// defaultHeapThreshold is the byte count gc.Heap collects its first
// generation at (spec.md §4.5); it then grows per Accountant's policy.
const defaultHeapThreshold = 1 << 20

// osStream adapts an *os.File to object.Stream so stdin/stdout/stderr
// can be handed to the VM like any other file handle.
type osStream struct {
	f *os.File
}

func (s osStream) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s osStream) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s osStream) Close() error                { return nil } // never closes stdio out from under the process

func newMachine(importRoots []string) *vm.VM {
	pool := object.NewPool()
	heap := gc.NewHeap(pool, defaultHeapThreshold)
	machine := vm.New(pool, heap, importRoots)
	machine.Stdin = object.NewFile(osStream{os.Stdin}, "<stdin>")
	machine.Stdout = object.NewFile(osStream{os.Stdout}, "<stdout>")
	machine.Stderr = object.NewFile(osStream{os.Stderr}, "<stderr>")
	return machine
}

func main() {
	errColor := color.New(color.FgRed, color.Bold)
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		errColor.DisableColor()
	}

	app := &cli.App{
		Name:    "pyro",
		Usage:   "a dynamically-typed, class-based scripting language",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "import-path",
				Aliases: []string{"I"},
				Usage:   "directory to search for `import`ed modules (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return runREPL(c.StringSlice("import-path"))
			}
			return runFile(c.Args().First(), c.StringSlice("import-path"))
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "execute a .pyro source file",
				ArgsUsage: "<file.pyro>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() == 0 {
						return cli.Exit("pyro run: no file specified", 1)
					}
					return runFile(c.Args().First(), c.StringSlice("import-path"))
				},
			},
			{
				Name:  "repl",
				Usage: "start the interactive read-eval-print loop",
				Action: func(c *cli.Context) error {
					return runREPL(c.StringSlice("import-path"))
				},
			},
			{
				Name:      "disassemble",
				Aliases:   []string{"disasm"},
				Usage:     "compile a .pyro file and print its bytecode",
				ArgsUsage: "<file.pyro>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() == 0 {
						return cli.Exit("pyro disassemble: no file specified", 1)
					}
					return disassembleFile(c.Args().First())
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		errColor.Fprintf(os.Stderr, "pyro: %v\n", err)
		os.Exit(1)
	}
}

// runFile compiles and runs one source file to completion, translating
// a compile or runtime panic into a process exit code rather than a Go
// stack trace.
func runFile(path string, importPaths []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %v", path, err), 1)
	}

	roots := append([]string{filepath.Dir(path)}, importPaths...)
	machine := newMachine(roots)

	fn, err := compiler.Compile(string(data), path, filepath.Base(path), machine.Pool, func() *object.Fn {
		return object.NewFn("$main", path, filepath.Base(path))
	}, false)
	if err != nil {
		return cli.Exit(fmt.Sprintf("compile error: %v", err), 1)
	}

	if _, err := machine.Interpret(fn); err != nil {
		return cli.Exit(fmt.Sprintf("runtime error: %v", err), 1)
	}
	return nil
}

// disassembleFile compiles a source file and prints its bytecode
// without running it, for inspecting what the compiler emitted.
func disassembleFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %v", path, err), 1)
	}

	pool := object.NewPool()
	fn, err := compiler.Compile(string(data), path, filepath.Base(path), pool, func() *object.Fn {
		return object.NewFn("$main", path, filepath.Base(path))
	}, false)
	if err != nil {
		return cli.Exit(fmt.Sprintf("compile error: %v", err), 1)
	}

	out := colorable.NewColorableStdout()
	fmt.Fprintf(out, "=== %s ===\n", path)
	fmt.Fprint(out, bytecode.Disassemble(fn))
	return nil
}

// runREPL is an interactive Read-Eval-Print loop. Each line compiles in
// REPL mode against the same VM and Globals module as the previous one,
// so top-level `var`/`def`/`class` declarations persist across inputs.
func runREPL(importPaths []string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	prompt := color.New(color.FgCyan).Sprint("pyro> ")
	errColor := color.New(color.FgRed)
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	machine := newMachine(importPaths)
	pool := machine.Pool

	fmt.Printf("Pyro %s — Ctrl-D to exit\n", version)
	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		// Each REPL line gets its own source id so a panic's stack trace
		// and the disassembler header can tell which input line a frame
		// came from, instead of every line sharing the literal "repl".
		sourceID := uuid.NewString()
		fn, err := compiler.Compile(input, sourceID, "<repl>", pool, func() *object.Fn {
			return object.NewFn("$repl", sourceID, "<repl>")
		}, true)
		if err != nil {
			errColor.Fprintf(os.Stderr, "compile error: %v\n", err)
			continue
		}

		// A lone trailing expression is echoed to Stdout by OpPopEchoInRepl
		// itself (compiler.Compile's replMode rewrite); Interpret's return
		// value is the top-level Fn's own (always-null) result, not that
		// echoed value, so there's nothing further to print here.
		if _, err := machine.Interpret(fn); err != nil {
			errColor.Fprintf(os.Stderr, "runtime error: %v\n", err)
			continue
		}
	}
}
