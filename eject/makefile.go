// Package eject implements the ejecting builder (spec.md §4.5, component
// C5) and the Makefile writer it and [forge]'s front-ends share (spec.md
// §4.6, component C6).
//
// No example repo in the retrieval pack emits Makefiles, so the writer
// below is original code written directly against spec.md §4.6's
// field-level description, styled after the teacher's small,
// single-purpose internal plan types (e.g. commandWrapperPlan in
// sandbox/wrappers.go): a flat ordered item list in, rendered text out, no
// intermediate AST.
package eject

import "strings"

// Item is one element of a Makefile item list: a [Raw] line, a [Rule], or a
// [Define] block.
type Item interface{ item() }

// Raw is emitted verbatim on its own line.
type Raw string

func (Raw) item() {}

// Rule renders as "<target>: <deps>\n\t<command>" per command line. If
// Phony, Target is also appended to a trailing .PHONY list.
type Rule struct {
	Target   string
	Deps     []string
	Commands []string
	Phony    bool
}

func (Rule) item() {}

// KV is one KEY=value pair within a [Define]'s mapping segment. A nil Value
// omits the key entirely, so host-conditional values (e.g. CI, present only
// when set) survive absence cleanly.
type KV struct {
	Key   string
	Value *string
}

// Str constructs a set KV.
func Str(key, value string) KV {
	return KV{Key: key, Value: &value}
}

// DefineSegment is one line (or group of KEY=value lines) within a
// [Define]'s body. Exactly one of Line or Pairs should be set.
type DefineSegment struct {
	Line  string
	Pairs []KV
}

// Define renders as "define NAME\n…\nendef", its body the line-by-line
// concatenation of Segments.
type Define struct {
	Name     string
	Segments []DefineSegment
}

func (Define) item() {}

// Write renders items to Makefile text, in order, separated by blank
// lines.
func Write(items []Item) string {
	var (
		sb    strings.Builder
		phony []string
	)

	for i, it := range items {
		if i > 0 {
			sb.WriteString("\n")
		}

		switch v := it.(type) {
		case Raw:
			sb.WriteString(string(v))
			sb.WriteString("\n")
		case Rule:
			writeRule(&sb, v)

			if v.Phony {
				phony = append(phony, v.Target)
			}
		case Define:
			writeDefine(&sb, v)
		}
	}

	if len(phony) > 0 {
		sb.WriteString("\n.PHONY: ")
		sb.WriteString(strings.Join(phony, " "))
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeRule(sb *strings.Builder, r Rule) {
	sb.WriteString(r.Target)
	sb.WriteString(":")

	for _, d := range r.Deps {
		sb.WriteString(" ")
		sb.WriteString(d)
	}

	sb.WriteString("\n")

	for _, c := range r.Commands {
		sb.WriteString("\t")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
}

func writeDefine(sb *strings.Builder, d Define) {
	sb.WriteString("define ")
	sb.WriteString(d.Name)
	sb.WriteString("\n")

	for _, seg := range d.Segments {
		if seg.Pairs != nil {
			for _, kv := range seg.Pairs {
				if kv.Value == nil {
					continue
				}

				sb.WriteString(kv.Key)
				sb.WriteString("=")
				sb.WriteString(*kv.Value)
				sb.WriteString("\n")
			}

			continue
		}

		sb.WriteString(seg.Line)
		sb.WriteString("\n")
	}

	sb.WriteString("endef\n")
}
