package goxide

import (
	"fmt"
	"strings"
)

// Errors surface as values: the pipeline returns them, it never uses
// panics for user-visible failures.

// SyntaxError is produced by the reader and the AST layer: malformed
// forms, arity violations in core forms, defines in bad positions,
// transformer shape problems.
type SyntaxError struct {
	Msg string
	Loc *Locator
}

func (e *SyntaxError) Error() string {
	if e.Loc != nil {
		return fmt.Sprintf("syntax error: %s @ %s", e.Msg, e.Loc)
	}
	return fmt.Sprintf("syntax error: %s", e.Msg)
}

// RuntimeError is produced by the VM and by primitives: arity and type
// failures, reads of undefined slots, interruption.  Primitive-specific
// messages propagate verbatim.
type RuntimeError struct {
	Msg string
	Loc *Locator
}

func (e *RuntimeError) Error() string {
	if e.Loc != nil {
		return fmt.Sprintf("runtime error: %s @ %s", e.Msg, e.Loc)
	}
	return fmt.Sprintf("runtime error: %s", e.Msg)
}

// locateSyntaxErr attaches a source location to an error from the AST
// layer, keeping an already-located error intact.
func locateSyntaxErr(err error, loc *Locator) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SyntaxError); ok {
		if se.Loc == nil {
			se.Loc = loc
		}
		return se
	}
	return &SyntaxError{Msg: err.Error(), Loc: loc}
}

// LocateMessage renders a caret diagnostic pointing at the locator's
// range inside source.
func LocateMessage(source string, loc *Locator, msg string) string {
	var out strings.Builder
	maxLineWidth := len(fmt.Sprintf("%d", loc.Range.End.Line))
	prefix := strings.Repeat(" ", maxLineWidth)

	fmt.Fprintf(&out, "error: %s\n", msg)
	fmt.Fprintf(&out, "%s--> %s\n", prefix, loc)
	fmt.Fprintf(&out, "%s |\n", prefix)

	lines := strings.Split(source, "\n")
	for i, line := range lines {
		lineNo := uint32(i + 1)
		if lineNo < loc.Range.Start.Line || lineNo > loc.Range.End.Line {
			continue
		}
		fmt.Fprintf(&out, "%*d | %s\n", maxLineWidth, lineNo, line)
		if lineNo == loc.Range.Start.Line {
			var marker string
			if loc.Range.Start.Line == loc.Range.End.Line {
				width := int(loc.Range.End.Col) - int(loc.Range.Start.Col) + 1
				if width < 1 {
					width = 1
				}
				marker = strings.Repeat(" ", int(loc.Range.Start.Col)) + strings.Repeat("^", width)
			} else {
				marker = strings.Repeat("-", int(loc.Range.Start.Col)+1) + "^"
			}
			fmt.Fprintf(&out, "%s | %s\n", prefix, marker)
		}
	}
	fmt.Fprintf(&out, "%s |\n", prefix)
	return out.String()
}
