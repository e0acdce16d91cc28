// The goxide binary runs a Scheme REPL, or executes a source file when
// one is given on the command line.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goxidelang/goxide"
)

func main() {
	root := &cobra.Command{
		Use:   "goxide [input-file]",
		Short: "A Scheme interpreter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
		// run returns its errors and main prints them below.
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.Flags()
	flags.Bool("no-std", false, "Do not load the standard library")
	flags.String("stdlib-file", "", "Load the standard library from this file instead of the embedded one")
	flags.Bool("no-readline", false, "Disable the readline library")
	flags.String("gc-mode", "normal", "GC mode: off, normal, debug, debug-heavy")

	if err := root.Execute(); err != nil {
		log.Fatalf("error: %s", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	noStd, _ := flags.GetBool("no-std")
	stdlibFile, _ := flags.GetString("stdlib-file")
	noReadline, _ := flags.GetBool("no-readline")
	gcModeName, _ := flags.GetString("gc-mode")

	gcMode, err := goxide.ParseGcMode(gcModeName)
	if err != nil {
		return err
	}

	var inputFile string
	if len(args) == 1 {
		inputFile = args[0]
	}
	silent := inputFile != ""

	var repl goxide.Repl
	switch {
	case inputFile != "":
		repl, err = goxide.NewFileRepl(inputFile)
	case noReadline:
		repl = goxide.NewStdIoRepl()
	default:
		repl, err = goxide.NewReadlineRepl("history.txt")
	}
	if err != nil {
		return err
	}

	interp := goxide.NewInterpreter(gcMode)

	interruptor := interp.Interruptor()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)
	go func() {
		for range sig {
			interruptor.Interrupt()
		}
	}()

	if !noStd {
		if stdlibFile != "" {
			err = interp.Initialize(stdlibFile)
		} else {
			err = interp.InitializeStdlib()
		}
		if err != nil {
			return fmt.Errorf("loading standard library: %w", err)
		}
	}

	for handleOneExpr(repl, interp, silent) {
	}
	repl.SaveHistory()
	return nil
}

// handleOneExpr reads one (possibly multi-line) expression batch,
// evaluates it, and reports.  Returns false when the REPL should stop.
func handleOneExpr(repl goxide.Repl, interp *goxide.Interpreter, silent bool) bool {
	var (
		exprLines []string
		pending   []goxide.Token
		exprs     [][]goxide.Token
		depth     int
	)

	for {
		var line string
		var err error
		if len(pending) == 0 {
			line, err = repl.GetLine(">>> ", "")
		} else {
			line, err = repl.GetLine("... ", strings.Repeat(" ", depth*2))
		}
		if err != nil {
			return false
		}

		tokens, err := goxide.Lex(line)
		if err != nil {
			fmt.Printf("lex error: %s\n", err)
			return true
		}
		exprLines = append(exprLines, line)
		pending = append(pending, tokens...)

		seg, err := goxide.Segment(pending)
		if err != nil {
			fmt.Printf("%s\n", err)
			return true
		}
		exprs = append(exprs, seg.Segments...)

		if len(seg.Remainder) == 0 {
			break
		}
		depth = seg.Depth
		pending = seg.Remainder
	}

	repl.AddToHistory(strings.Join(exprLines, "\n"))

	reader := goxide.NewReader(interp.Heap, true, "<repl>")
	for _, tokens := range exprs {
		value, err := reader.ReadTokens(tokens)
		if err != nil {
			fmt.Printf("parse error: %s\n", err)
			return true
		}
		result, err := interp.ParseCompileRun(value)
		value.Drop()
		if err != nil {
			fmt.Printf("%s\n", err)
			continue
		}
		if !silent {
			fmt.Printf(" => %s\n", goxide.PrettyPrint(result.Pp()))
		}
		result.Drop()
	}
	return true
}
