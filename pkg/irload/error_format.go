package irload

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	yamlLineRe = regexp.MustCompile(`\bline (\d+)`)
	opRefRe    = regexp.MustCompile(`^op (\d+) \((\w+)\): `)
)

// FormatError turns a load or verification error into a user-facing message.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Program could not be loaded.\n")

	for _, item := range problems(err) {
		msg, hint := classifyAndHint(item.msg)
		fmt.Fprintf(&b, "- %s\n", msg)
		if item.loc != "" {
			fmt.Fprintf(&b, "  Location: %s\n", item.loc)
		}
		if hint != "" {
			fmt.Fprintf(&b, "  How to fix: %s\n", hint)
		}
		fmt.Fprintf(&b, "  Details: %s\n", item.msg)
	}
	return b.String()
}

type problem struct {
	loc string
	msg string
}

// problems splits err into individually reported items. Verifier errors are
// joined one per line.
func problems(err error) []problem {
	var le *Error
	if errors.As(err, &le) {
		return []problem{{loc: fmt.Sprintf("line %d, column %d", le.Line, le.Column), msg: le.Msg}}
	}

	text := err.Error()
	if i := strings.Index(text, "program is not well formed: "); i >= 0 {
		text = text[i+len("program is not well formed: "):]
	}
	var out []problem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, deriveLocation(line))
	}
	return out
}

func deriveLocation(s string) problem {
	if m := opRefRe.FindStringSubmatch(s); len(m) == 3 {
		return problem{loc: fmt.Sprintf("%s op #%s", m[2], m[1]), msg: s[len(m[0]):]}
	}
	if m := yamlLineRe.FindStringSubmatch(s); len(m) == 2 {
		return problem{loc: "line " + m[1], msg: s}
	}
	return problem{msg: s}
}

func classifyAndHint(s string) (msg, hint string) {
	switch {
	case strings.Contains(s, "undefined value"):
		return "Reference to an undefined value.",
			"Check the spelling of the id, and define it above the op that uses it."
	case strings.Contains(s, "is not visible here"):
		return "Value used outside the region that defines it.",
			"Values defined inside an iterate or if body cannot be used after it; define the value before the region."
	case strings.Contains(s, "duplicate id"):
		return "Id defined twice.", "Give each op result a unique id."
	case strings.Contains(s, "unknown op"):
		return "Unknown op.",
			"Use one of const, alloc, getref, load, store, compute, iterate, if, dealloc, return."
	case strings.Contains(s, "unknown field"), strings.Contains(s, "is not allowed on"):
		return "Unexpected field.", "Remove the field; each op accepts only the fields of its kind."
	case strings.Contains(s, "invalid type"), strings.Contains(s, "invalid dimension"),
		strings.Contains(s, "invalid element type"), strings.Contains(s, "missing element type"):
		return "Malformed type.", `Write scalars as f32, i8 or index, and buffers as "memref<4x?xf32>".`
	case strings.Contains(s, "overruns pool"), strings.Contains(s, "outside pool"):
		return "Slot does not fit in its pool.",
			"Move the offset or shrink the slot type so the view lies inside the pool."
	case strings.Contains(s, "offset is not a constant"):
		return "Slot offset is not a constant.", "Define the getref offset with a const op."
	case strings.Contains(s, "expected a memref"):
		return "Memory op on a non-buffer value.", "Pass an alloc or getref result as the buffer operand."
	case strings.Contains(s, "invalid YAML"), strings.Contains(s, "yaml:"):
		return "Invalid YAML.", ""
	}
	return "Invalid program.", ""
}
