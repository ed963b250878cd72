// Package model defines the intermediate representation used between the parser,
// the resolver and the code generator. The parser populates schemas from Go
// declarations; the resolver turns each schema into a plan; the generator reads
// plans to emit HeapSize methods.
package model

import (
	"go/token"
	"strconv"
	"strings"
)

// DefaultOutput is the file name generated code is written to. The parser
// skips it and the generator writes it.
const DefaultOutput = "heapsize_gen.go"

// Package represents the parsed target package and its selected types.
type Package struct {
	Name  string        // Go package name, e.g. "example"
	Dir   string        // Absolute directory of the package
	Types []*TypeSchema // Selected types in declaration order
}

// Kind is the layout category of a type.
type Kind int

const (
	KindRecord      Kind = iota // struct type
	KindUnion                   // sealed interface with variant types
	KindUnsupported             // annotated type without a summable layout
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindUnion:
		return "union"
	default:
		return "unsupported"
	}
}

// Source tells where a raw annotation was written.
type Source int

const (
	SourceDirective Source = iota // //heapsize:<text> comment line
	SourceTag                     // heapsize:"<text>" struct tag
)

// RawAnnotation is an annotation exactly as written, before validation.
type RawAnnotation struct {
	Text   string // Text after the namespace, e.g. "all", "with=sizes.Cache", ""
	Source Source
	Pos    token.Position
}

// TypeSchema is the ordered structural description of one type.
type TypeSchema struct {
	Name        string
	Kind        Kind
	TypeParams  []string          // Type parameter names, e.g. ["K", "V"]
	Fields      []FieldSchema     // Record only
	Variants    []VariantSchema   // Union only
	Annotations []RawAnnotation   // Type level
	Imports     map[string]string // File-local package name -> import path
	Pos         token.Position
	Detail      string // Why the type is unsupported
}

// VariantSchema is one member type of a union.
type VariantSchema struct {
	Name        string
	Pointer     bool // Only *Name implements the union
	Fields      []FieldSchema
	Annotations []RawAnnotation // Variant level
	Imports     map[string]string
	Pos         token.Position
	Detail      string // Why the variant cannot be measured, e.g. it is not a struct
}

// FieldSchema is one field of a record or variant.
type FieldSchema struct {
	Name        string // Field name, or the type name of an embedded field
	Index       int    // Declaration position among extracted fields
	Type        string // Type expression, e.g. "map[string][]byte"
	Embedded    bool
	Annotations []RawAnnotation // Field level
	Pos         token.Position
}

// AnnotationKind is the closed set of annotation intents.
type AnnotationKind int

const (
	AnnotAll     AnnotationKind = iota // type or variant: every field counts
	AnnotInclude                       // field: counts via heapsize.Of
	AnnotWith                          // field: counts via a named function
	AnnotSkip                          // field or variant: excluded
)

func (k AnnotationKind) String() string {
	switch k {
	case AnnotAll:
		return "all"
	case AnnotInclude:
		return "include"
	case AnnotWith:
		return "with"
	default:
		return "skip"
	}
}

// Annotation is a validated annotation.
type Annotation struct {
	Kind AnnotationKind
	Path string // AnnotWith only, e.g. "sizes.Cache"
	Raw  RawAnnotation
}

// PlanKind is the resolved treatment of one field.
type PlanKind int

const (
	PlanSkip   PlanKind = iota // not counted
	PlanTrait                  // heapsize.Of(&x.Field)
	PlanCustom                 // Func(&x.Field)
)

func (k PlanKind) String() string {
	switch k {
	case PlanTrait:
		return "trait"
	case PlanCustom:
		return "custom"
	default:
		return "skip"
	}
}

// FieldPlan is the resolved treatment of one field.
type FieldPlan struct {
	Field      FieldSchema
	Kind       PlanKind
	Func       string // PlanCustom: function name, e.g. "Cache"
	ImportPath string // PlanCustom: package providing Func, empty for same-package functions
	ImportName string // PlanCustom: name Func is qualified with in the source
}

// VariantPlan holds the plans of one union variant.
type VariantPlan struct {
	Variant VariantSchema
	Fields  []FieldPlan
}

// TypePlan holds the plans of one type.
type TypePlan struct {
	Type     *TypeSchema
	Fields   []FieldPlan   // Record only
	Variants []VariantPlan // Union only
}

// Counted returns the plans that contribute to the sum, in declaration order.
func Counted(plans []FieldPlan) []FieldPlan {
	var out []FieldPlan
	for _, p := range plans {
		if p.Kind != PlanSkip {
			out = append(out, p)
		}
	}
	return out
}

// PackageName guesses the package name of an import path: the last element,
// skipping a major version suffix and dropping go- and -go affixes.
func PackageName(path string) string {
	elems := strings.Split(path, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(name) {
		name = elems[len(elems)-2]
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.TrimSuffix(name, "-go")
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, "-", "")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}
