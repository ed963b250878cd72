package diag

import (
	"fmt"
	"go/token"
	"strings"
)

// Kind categorizes a diagnostic.
type Kind string

const (
	KindMalformed   Kind = "malformed_annotation"
	KindDuplicate   Kind = "duplicate_annotation"
	KindMisplaced   Kind = "misplaced_annotation"
	KindIllegalSkip Kind = "illegal_skip"
	KindUnsupported Kind = "unsupported_kind"
)

// Diagnostic is a single generation-time problem.
type Diagnostic struct {
	Kind   Kind
	Target []string // type, then variant and/or field
	Pos    token.Position
	Text   string // offending annotation text, if any
	Detail string
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	var b strings.Builder

	if d.Pos.IsValid() {
		b.WriteString(d.Pos.String())
		b.WriteString(": ")
	}

	b.WriteByte('[')
	b.WriteString(string(d.Kind))
	b.WriteByte(']')

	if len(d.Target) > 0 {
		b.WriteString(" at ")
		b.WriteString(d.TargetName())
	}

	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}

	return b.String()
}

// TargetName returns the dotted target path, e.g. "Shape.Circle.Radius".
func (d *Diagnostic) TargetName() string {
	return strings.Join(d.Target, ".")
}

// Is reports whether target is a diagnostic of the same kind.
func (d *Diagnostic) Is(target error) bool {
	if t, ok := target.(*Diagnostic); ok {
		return d.Kind == t.Kind
	}
	return false
}

// Builder provides structured diagnostic construction.
type Builder struct {
	d Diagnostic
}

// New creates a new diagnostic builder.
func New(kind Kind) *Builder {
	return &Builder{d: Diagnostic{Kind: kind}}
}

// Target sets the target path.
func (b *Builder) Target(path ...string) *Builder {
	b.d.Target = append([]string(nil), path...)
	return b
}

// Pos sets the source position.
func (b *Builder) Pos(pos token.Position) *Builder {
	b.d.Pos = pos
	return b
}

// Text sets the offending annotation text.
func (b *Builder) Text(text string) *Builder {
	b.d.Text = text
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.d.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.d.Detail = msg
	}
	return b
}

// Build returns the constructed diagnostic.
func (b *Builder) Build() *Diagnostic {
	d := b.d
	return &d
}

// List is an ordered set of diagnostics reported together.
type List []*Diagnostic

// Error implements the error interface.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no diagnostics"
	case 1:
		return l[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d heapsize diagnostics:", len(l))
	for _, d := range l {
		b.WriteString("\n  ")
		b.WriteString(d.Error())
	}
	return b.String()
}

// Unwrap exposes the individual diagnostics to errors.Is and errors.As.
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, d := range l {
		errs[i] = d
	}
	return errs
}

// Err returns the list as an error, or nil when it is empty.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Kinds returns the kind of every diagnostic in order.
func (l List) Kinds() []Kind {
	kinds := make([]Kind, len(l))
	for i, d := range l {
		kinds[i] = d.Kind
	}
	return kinds
}
