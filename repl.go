package goxide

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
)

// Repl abstracts the line source driving the read-eval-print loop: an
// interactive readline session, plain standard input, or a file.
type Repl interface {
	// GetLine prompts for and returns one line of input, without the
	// trailing newline.
	GetLine(prompt, prefill string) (string, error)
	// AddToHistory records a complete expression.
	AddToHistory(entry string)
	// SaveHistory persists the history, where supported.
	SaveHistory()
}

// ErrReplEof signals the end of the input stream.
var ErrReplEof = io.EOF

// ReadlineRepl is the interactive implementation with line editing and
// persistent history.
type ReadlineRepl struct {
	rl *readline.Instance
}

// NewReadlineRepl creates a readline-backed REPL.  historyFile may be
// empty to disable persistence.
func NewReadlineRepl(historyFile string) (*ReadlineRepl, error) {
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, err
	}
	return &ReadlineRepl{rl: rl}, nil
}

func (r *ReadlineRepl) GetLine(prompt, prefill string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.ReadlineWithDefault(prefill)
	if err == readline.ErrInterrupt {
		return "", ErrReplEof
	}
	if err != nil {
		return "", err
	}
	return line, nil
}

func (r *ReadlineRepl) AddToHistory(entry string) {
	_ = r.rl.SaveHistory(entry)
}

func (r *ReadlineRepl) SaveHistory() {
	_ = r.rl.Close()
}

// StdIoRepl reads lines from standard input with no editing.
type StdIoRepl struct {
	scanner *bufio.Scanner
}

func NewStdIoRepl() *StdIoRepl {
	return &StdIoRepl{scanner: bufio.NewScanner(os.Stdin)}
}

func (r *StdIoRepl) GetLine(prompt, prefill string) (string, error) {
	fmt.Print(prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrReplEof
	}
	return r.scanner.Text(), nil
}

func (r *StdIoRepl) AddToHistory(string) {}
func (r *StdIoRepl) SaveHistory()        {}

// FileRepl feeds a source file through the REPL loop line by line.
type FileRepl struct {
	lines []string
	pos   int
}

func NewFileRepl(path string) (*FileRepl, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &FileRepl{lines: lines}, nil
}

func (r *FileRepl) GetLine(prompt, prefill string) (string, error) {
	if r.pos >= len(r.lines) {
		return "", ErrReplEof
	}
	line := r.lines[r.pos]
	r.pos++
	return line, nil
}

func (r *FileRepl) AddToHistory(string) {}
func (r *FileRepl) SaveHistory()        {}
