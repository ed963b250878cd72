package parser

import (
	"fmt"
	"go/ast"

	"github.com/mlwelles/heapsizegen/model"
)

// variantMatch is a package type found to implement a union interface.
type variantMatch struct {
	decl    *typeDecl
	pointer bool // only *T has every method
}

// inferVariants fills in the variants of every union schema after all types
// have been described.
//
// Inference rules:
//
//   - A variant is a non-generic, non-interface type declared in the package
//     whose method set contains every method of the union, in declaration
//     order of the type.
//
//   - Methods with value receivers satisfy both T and *T; methods with pointer
//     receivers only *T. A variant reached only through *T is marked Pointer.
//
//   - A variant that is not a struct has no fields to sum and would report
//     zero for heap memory it owns; it is kept with a Detail and rejected by
//     the resolver.
//
//   - A type implementing two selected unions cannot receive one HeapSize
//     method per union and is an error.
func inferVariants(e *extractor, schemas []*model.TypeSchema) error {
	owner := make(map[string]string)
	for _, s := range schemas {
		if s.Kind != model.KindUnion {
			continue
		}
		for _, m := range e.implementers(e.byName[s.Name]) {
			name := m.decl.name()
			if prev, ok := owner[name]; ok {
				return fmt.Errorf("%s: %s is a variant of both %s and %s",
					e.fset.Position(m.decl.spec.Name.Pos()), name, prev, s.Name)
			}
			owner[name] = s.Name

			v := model.VariantSchema{
				Name:        name,
				Pointer:     m.pointer,
				Annotations: e.directives(m.decl.doc),
				Imports:     e.imports[m.decl.file],
				Pos:         e.fset.Position(m.decl.spec.Name.Pos()),
			}
			if st, ok := m.decl.spec.Type.(*ast.StructType); ok {
				v.Fields = e.fields(st)
			} else {
				v.Detail = fmt.Sprintf("%s is a %s type; union variants must be struct types", name, kindOf(m.decl.spec.Type))
			}
			s.Variants = append(s.Variants, v)
		}
	}
	return nil
}

// implementers returns the variants of d when d declares a usable union
// interface, and nil otherwise.
func (e *extractor) implementers(d *typeDecl) []variantMatch {
	iface, ok := d.spec.Type.(*ast.InterfaceType)
	if !ok || d.spec.TypeParams != nil || d.spec.Assign.IsValid() || e.unionProblem(iface) != "" {
		return nil
	}
	required, _ := e.interfaceMethods(iface, map[string]bool{})

	var out []variantMatch
	for _, c := range e.decls {
		if c == d || c.spec.TypeParams != nil || c.spec.Assign.IsValid() {
			continue
		}
		if _, ok := c.spec.Type.(*ast.InterfaceType); ok {
			continue
		}
		ms := e.methods[c.name()]
		if ms == nil {
			continue
		}
		if hasAll(ms.value, required) {
			out = append(out, variantMatch{decl: c})
		} else if hasAll(ms.value, required, ms.pointer) {
			out = append(out, variantMatch{decl: c, pointer: true})
		}
	}
	return out
}

// hasAll reports whether every required method is declared in one of sets.
func hasAll(set map[string]bool, required []string, more ...map[string]bool) bool {
	for _, name := range required {
		if set[name] {
			continue
		}
		found := false
		for _, m := range more {
			if m[name] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
