package goxide

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Port is a heap value holding interior-mutable readers and writers.
// Only the single evaluator thread touches ports; close after close is
// idempotent, and reads or writes on a closed port fail.
type Port struct {
	Name   string
	in     *bufio.Reader
	out    *bufio.Writer
	closer io.Closer
	closed bool

	// accum collects output for string ports.
	accum *strings.Builder
}

func (*Port) Type() string      { return "port" }
func (*Port) inventory(*ptrVec) {}

// NewInputPort wraps a reader.
func NewInputPort(name string, r io.Reader) *Port {
	p := &Port{Name: name, in: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok {
		p.closer = c
	}
	return p
}

// NewOutputPort wraps a writer.
func NewOutputPort(name string, w io.Writer) *Port {
	p := &Port{Name: name, out: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		p.closer = c
	}
	return p
}

// NewStringOutputPort collects writes in memory for get-output-string.
func NewStringOutputPort() *Port {
	accum := &strings.Builder{}
	return &Port{Name: "string", out: bufio.NewWriter(accum), accum: accum}
}

// Close flushes and closes the underlying stream.  Idempotent.
func (p *Port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.out != nil {
		if err := p.out.Flush(); err != nil {
			return err
		}
	}
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func (p *Port) checkOpen() error {
	if p.closed {
		return fmt.Errorf("port %s is closed", p.Name)
	}
	return nil
}

// ReadChar reads one character, or io.EOF.
func (p *Port) ReadChar() (rune, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	if p.in == nil {
		return 0, fmt.Errorf("port %s is not an input port", p.Name)
	}
	r, _, err := p.in.ReadRune()
	return r, err
}

// PeekChar reads one character without consuming it.
func (p *Port) PeekChar() (rune, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	if p.in == nil {
		return 0, fmt.Errorf("port %s is not an input port", p.Name)
	}
	r, _, err := p.in.ReadRune()
	if err != nil {
		return 0, err
	}
	if err := p.in.UnreadRune(); err != nil {
		return 0, err
	}
	return r, nil
}

// WriteString writes and flushes s.
func (p *Port) WriteString(s string) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if p.out == nil {
		return fmt.Errorf("port %s is not an output port", p.Name)
	}
	if _, err := p.out.WriteString(s); err != nil {
		return err
	}
	return p.out.Flush()
}

var portPrimitives = []Primitive{
	{Name: "eof-object", Impl: eofObject},
	{Name: "eof-object?", Impl: eofObjectP},
	{Name: "port?", Impl: portP},
	{Name: "input-port?", Impl: inputPortP},
	{Name: "output-port?", Impl: outputPortP},
	{Name: "open-input-file", Impl: openInputFile},
	{Name: "open-output-file", Impl: openOutputFile},
	{Name: "open-input-string", Impl: openInputString},
	{Name: "open-output-string", Impl: openOutputString},
	{Name: "get-output-string", Impl: getOutputString},
	{Name: "close-port", Impl: closePort},
	{Name: "close-input-port", Impl: closePort},
	{Name: "close-output-port", Impl: closePort},
	{Name: "read-char", Impl: readChar},
	{Name: "peek-char", Impl: peekChar},
	{Name: "write-char", Impl: writeChar},
	{Name: "write-string", Impl: writeStringPrim},
}

func portArg(args []PoolPtr, i int) (*Port, error) {
	p, ok := args[i].Get().(*Port)
	if !ok {
		return nil, wrongType("port", args[i])
	}
	return p, nil
}

// inputPortArg returns the port at args[i], or the default input port
// when the argument is absent.
func inputPortArg(h *Heap, args []PoolPtr, i int) (*Port, error) {
	if len(args) <= i {
		return h.defaultInput, nil
	}
	return portArg(args, i)
}

func outputPortArg(h *Heap, args []PoolPtr, i int) (*Port, error) {
	if len(args) <= i {
		return h.defaultOutput, nil
	}
	return portArg(args, i)
}

func eofObject(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 0, 0); err != nil {
		return PoolPtr{}, err
	}
	return h.Eof, nil
}

func eofObjectP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(Eof)
	return boolValue(h, ok), nil
}

func portP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(*Port)
	return boolValue(h, ok), nil
}

func inputPortP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	p, ok := args[0].Get().(*Port)
	return boolValue(h, ok && p.in != nil), nil
}

func outputPortP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	p, ok := args[0].Get().(*Port)
	return boolValue(h, ok && p.out != nil), nil
}

func openInputFile(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	name, ok := args[0].Get().(*String)
	if !ok {
		return PoolPtr{}, wrongType("string", args[0])
	}
	f, err := os.Open(name.String())
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(NewInputPort(name.String(), f)), nil
}

func openOutputFile(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	name, ok := args[0].Get().(*String)
	if !ok {
		return PoolPtr{}, wrongType("string", args[0])
	}
	f, err := os.Create(name.String())
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(NewOutputPort(name.String(), f)), nil
}

func openInputString(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	s, ok := args[0].Get().(*String)
	if !ok {
		return PoolPtr{}, wrongType("string", args[0])
	}
	return h.Insert(NewInputPort("string", strings.NewReader(s.String()))), nil
}

func openOutputString(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 0, 0); err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(NewStringOutputPort()), nil
}

func getOutputString(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	p, err := portArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	if p.accum == nil {
		return PoolPtr{}, fmt.Errorf("not a string output port: %s", p.Name)
	}
	p.out.Flush()
	return h.Insert(NewString(p.accum.String())), nil
}

func closePort(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	p, err := portArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	if err := p.Close(); err != nil {
		return PoolPtr{}, err
	}
	return h.Unspecific, nil
}

func readChar(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 0, 1); err != nil {
		return PoolPtr{}, err
	}
	p, err := inputPortArg(h, args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	r, err := p.ReadChar()
	if err == io.EOF {
		return h.Eof, nil
	}
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(Character(r)), nil
}

func peekChar(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 0, 1); err != nil {
		return PoolPtr{}, err
	}
	p, err := inputPortArg(h, args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	r, err := p.PeekChar()
	if err == io.EOF {
		return h.Eof, nil
	}
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(Character(r)), nil
}

func writeChar(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 2); err != nil {
		return PoolPtr{}, err
	}
	c, ok := args[0].Get().(Character)
	if !ok {
		return PoolPtr{}, wrongType("character", args[0])
	}
	p, err := outputPortArg(h, args, 1)
	if err != nil {
		return PoolPtr{}, err
	}
	if err := p.WriteString(string(rune(c))); err != nil {
		return PoolPtr{}, err
	}
	return h.Unspecific, nil
}

func writeStringPrim(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 2); err != nil {
		return PoolPtr{}, err
	}
	s, ok := args[0].Get().(*String)
	if !ok {
		return PoolPtr{}, wrongType("string", args[0])
	}
	p, err := outputPortArg(h, args, 1)
	if err != nil {
		return PoolPtr{}, err
	}
	if err := p.WriteString(s.String()); err != nil {
		return PoolPtr{}, err
	}
	return h.Unspecific, nil
}
