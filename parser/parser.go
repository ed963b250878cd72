// Package parser extracts heapsize type schemas from Go source files by
// inspecting type declarations, their directive comments and their struct
// tags. It uses go/ast and go/parser to walk the AST, then builds a
// model.Package for the resolver.
package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"io/fs"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mlwelles/heapsizegen/model"
)

// DefaultTag is the annotation namespace used when Options.Tag is empty.
const DefaultTag = "heapsize"

// DefaultOutput is the generated file the parser skips.
const DefaultOutput = model.DefaultOutput

// Options controls extraction.
type Options struct {
	// Tag is the struct tag key and directive prefix (default "heapsize").
	Tag string
	// Types restricts extraction to the named types. When empty every type
	// carrying an annotation is selected.
	Types []string
	// Output is the generated file to ignore (default "heapsize_gen.go").
	Output string
}

func (o Options) withDefaults() Options {
	if o.Tag == "" {
		o.Tag = DefaultTag
	}
	if o.Output == "" {
		o.Output = DefaultOutput
	}
	return o
}

// Parse loads all Go source files in the directory at pkgDir and returns a
// model.Package holding every annotated type.
func Parse(pkgDir string) (*model.Package, error) {
	return ParseWithOptions(pkgDir, Options{})
}

// ParseWithOptions is Parse with explicit options.
func ParseWithOptions(pkgDir string, opts Options) (*model.Package, error) {
	opts = opts.withDefaults()

	fset := token.NewFileSet()
	filter := func(fi fs.FileInfo) bool {
		name := fi.Name()
		return !strings.HasSuffix(name, "_test.go") && name != opts.Output
	}
	pkgs, err := parser.ParseDir(fset, pkgDir, filter, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing package at %s: %w", pkgDir, err)
	}

	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no Go packages found in %s", pkgDir)
	}

	// Take the first non-test package in name order.
	names := make([]string, 0, len(pkgs))
	for name := range pkgs {
		if !strings.HasSuffix(name, "_test") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no non-test package found in %s", pkgDir)
	}
	slices.Sort(names)
	pkgName := names[0]

	// Files are visited in name order so declaration order is stable.
	pkgAST := pkgs[pkgName]
	fileNames := make([]string, 0, len(pkgAST.Files))
	for name := range pkgAST.Files {
		fileNames = append(fileNames, name)
	}
	slices.Sort(fileNames)
	files := make([]*ast.File, len(fileNames))
	for i, name := range fileNames {
		files[i] = pkgAST.Files[name]
	}

	e := &extractor{fset: fset, tag: opts.Tag}

	// First pass: collect declarations and method sets.
	e.collect(files)

	// Second pass: select and describe types.
	selected, err := e.selectTypes(opts.Types)
	if err != nil {
		return nil, err
	}

	var schemas []*model.TypeSchema
	for _, d := range selected {
		schemas = append(schemas, e.describe(d))
	}

	if err := inferVariants(e, schemas); err != nil {
		return nil, err
	}

	for _, s := range schemas {
		Logger().Debug("extracted type",
			zap.String("type", s.Name),
			zap.Stringer("kind", s.Kind),
			zap.Int("fields", len(s.Fields)),
			zap.Int("variants", len(s.Variants)))
	}

	return &model.Package{
		Name:  pkgName,
		Dir:   pkgDir,
		Types: schemas,
	}, nil
}

// typeDecl is one package-level type declaration.
type typeDecl struct {
	spec *ast.TypeSpec
	doc  *ast.CommentGroup
	file *ast.File
}

func (d *typeDecl) name() string { return d.spec.Name.Name }

// methodSet records the method names declared on a type, split by receiver.
type methodSet struct {
	value   map[string]bool
	pointer map[string]bool
}

type extractor struct {
	fset    *token.FileSet
	tag     string
	decls   []*typeDecl
	byName  map[string]*typeDecl
	methods map[string]*methodSet
	imports map[*ast.File]map[string]string
}

func (e *extractor) collect(files []*ast.File) {
	e.byName = make(map[string]*typeDecl)
	e.methods = make(map[string]*methodSet)
	e.imports = make(map[*ast.File]map[string]string)

	for _, file := range files {
		e.imports[file] = fileImports(file)
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.GenDecl:
				if decl.Tok != token.TYPE {
					continue
				}
				for _, spec := range decl.Specs {
					typeSpec, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					doc := typeSpec.Doc
					if doc == nil && !decl.Lparen.IsValid() {
						doc = decl.Doc
					}
					d := &typeDecl{spec: typeSpec, doc: doc, file: file}
					e.decls = append(e.decls, d)
					e.byName[d.name()] = d
				}
			case *ast.FuncDecl:
				if decl.Recv == nil || len(decl.Recv.List) == 0 {
					continue
				}
				recv, pointer := receiverName(decl.Recv.List[0].Type)
				if recv == "" {
					continue
				}
				ms := e.methods[recv]
				if ms == nil {
					ms = &methodSet{value: map[string]bool{}, pointer: map[string]bool{}}
					e.methods[recv] = ms
				}
				if pointer {
					ms.pointer[decl.Name.Name] = true
				} else {
					ms.value[decl.Name.Name] = true
				}
			}
		}
	}
}

// selectTypes returns the declarations to describe, in declaration order.
func (e *extractor) selectTypes(names []string) ([]*typeDecl, error) {
	var out []*typeDecl
	if len(names) > 0 {
		for _, name := range names {
			d, ok := e.byName[name]
			if !ok {
				return nil, fmt.Errorf("type %s not found", name)
			}
			out = append(out, d)
		}
		slices.SortStableFunc(out, func(a, b *typeDecl) int {
			return slices.Index(e.decls, a) - slices.Index(e.decls, b)
		})
		out = slices.Compact(out)
	} else {
		for _, d := range e.decls {
			if e.annotated(d) {
				out = append(out, d)
			}
		}
	}

	// A variant of a selected union is generated with the union.
	variants := make(map[string]bool)
	for _, d := range out {
		for _, v := range e.implementers(d) {
			variants[v.decl.name()] = true
		}
	}
	return slices.DeleteFunc(out, func(d *typeDecl) bool { return variants[d.name()] }), nil
}

// annotated reports whether a declaration carries a heapsize annotation that
// selects it: a type-level directive, or a field tag on a struct.
func (e *extractor) annotated(d *typeDecl) bool {
	if len(e.directives(d.doc)) > 0 {
		return true
	}
	st, ok := d.spec.Type.(*ast.StructType)
	if !ok {
		return false
	}
	for _, f := range st.Fields.List {
		if len(e.tagAnnotations(f.Tag)) > 0 {
			return true
		}
	}
	return false
}

func (e *extractor) describe(d *typeDecl) *model.TypeSchema {
	s := &model.TypeSchema{
		Name:        d.name(),
		TypeParams:  typeParams(d.spec.TypeParams),
		Annotations: e.directives(d.doc),
		Imports:     e.imports[d.file],
		Pos:         e.fset.Position(d.spec.Name.Pos()),
	}

	if d.spec.Assign.IsValid() {
		s.Kind = model.KindUnsupported
		s.Detail = fmt.Sprintf("%s is an alias of %s; annotate the aliased type instead", s.Name, typeString(d.spec.Type))
		return s
	}

	switch t := d.spec.Type.(type) {
	case *ast.StructType:
		s.Kind = model.KindRecord
		s.Fields = e.fields(t)
	case *ast.InterfaceType:
		s.Kind = model.KindUnion
		if d.spec.TypeParams != nil {
			s.Kind = model.KindUnsupported
			s.Detail = fmt.Sprintf("%s is a generic interface; its variants cannot be enumerated", s.Name)
		} else if detail := e.unionProblem(t); detail != "" {
			s.Kind = model.KindUnsupported
			s.Detail = fmt.Sprintf("%s %s", s.Name, detail)
		}
	default:
		s.Kind = model.KindUnsupported
		s.Detail = fmt.Sprintf("%s is a %s type; heapsize applies to struct and interface types", s.Name, kindOf(d.spec.Type))
	}
	return s
}

// unionProblem explains why an interface cannot act as a union, or returns "".
func (e *extractor) unionProblem(iface *ast.InterfaceType) string {
	for _, m := range iface.Methods.List {
		if len(m.Names) > 0 {
			continue
		}
		switch m.Type.(type) {
		case *ast.BinaryExpr, *ast.UnaryExpr:
			return "is a constraint interface with a type set"
		}
	}
	methods, unresolved := e.interfaceMethods(iface, map[string]bool{})
	if unresolved != "" {
		return fmt.Sprintf("embeds %s, whose methods are declared outside the package", unresolved)
	}
	if len(methods) == 0 {
		return "has no methods to identify its variants"
	}
	return ""
}

// interfaceMethods returns the full method list of iface, following embedded
// interfaces declared in the package. It also returns the first embedded
// interface it could not follow.
func (e *extractor) interfaceMethods(iface *ast.InterfaceType, seen map[string]bool) ([]string, string) {
	var methods []string
	for _, m := range iface.Methods.List {
		if len(m.Names) > 0 {
			for _, n := range m.Names {
				methods = append(methods, n.Name)
			}
			continue
		}
		ident, ok := m.Type.(*ast.Ident)
		if !ok {
			return nil, typeString(m.Type)
		}
		if ident.Name == "error" {
			methods = append(methods, "Error")
			continue
		}
		d, ok := e.byName[ident.Name]
		if !ok {
			return nil, ident.Name
		}
		embedded, ok := d.spec.Type.(*ast.InterfaceType)
		if !ok {
			return nil, ident.Name
		}
		if seen[ident.Name] {
			continue
		}
		seen[ident.Name] = true
		more, unresolved := e.interfaceMethods(embedded, seen)
		if unresolved != "" {
			return nil, unresolved
		}
		methods = append(methods, more...)
	}
	return methods, ""
}

// fields extracts the fields of a struct in declaration order. Blank fields
// cannot be addressed and are left out.
func (e *extractor) fields(st *ast.StructType) []model.FieldSchema {
	var fields []model.FieldSchema
	for _, f := range st.Fields.List {
		annotations := e.tagAnnotations(f.Tag)
		goType := typeString(f.Type)

		if len(f.Names) == 0 {
			fields = append(fields, model.FieldSchema{
				Name:        embeddedName(f.Type),
				Index:       len(fields),
				Type:        goType,
				Embedded:    true,
				Annotations: annotations,
				Pos:         e.fset.Position(f.Type.Pos()),
			})
			continue
		}

		for _, n := range f.Names {
			if n.Name == "_" {
				continue
			}
			fields = append(fields, model.FieldSchema{
				Name:        n.Name,
				Index:       len(fields),
				Type:        goType,
				Annotations: annotations,
				Pos:         e.fset.Position(n.Pos()),
			})
		}
	}
	return fields
}

// directives returns the //<tag>:<text> lines of a doc comment. The raw
// comment list is scanned because CommentGroup.Text drops directives.
func (e *extractor) directives(doc *ast.CommentGroup) []model.RawAnnotation {
	if doc == nil {
		return nil
	}
	prefix := "//" + e.tag + ":"
	var out []model.RawAnnotation
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, prefix) {
			continue
		}
		out = append(out, model.RawAnnotation{
			Text:   strings.TrimSpace(c.Text[len(prefix):]),
			Source: model.SourceDirective,
			Pos:    e.fset.Position(c.Pos()),
		})
	}
	return out
}

// tagAnnotations returns every value of the tag key in a struct tag literal.
func (e *extractor) tagAnnotations(lit *ast.BasicLit) []model.RawAnnotation {
	if lit == nil {
		return nil
	}
	tag, err := strconv.Unquote(lit.Value)
	if err != nil {
		tag = strings.Trim(lit.Value, "`")
	}
	var out []model.RawAnnotation
	for _, v := range lookupAll(tag, e.tag) {
		out = append(out, model.RawAnnotation{
			Text:   v,
			Source: model.SourceTag,
			Pos:    e.fset.Position(lit.Pos()),
		})
	}
	return out
}

// lookupAll is reflect.StructTag.Lookup returning every occurrence of key
// rather than the first.
func lookupAll(tag, key string) []string {
	var out []string
	for tag != "" {
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}

		i = 0
		for i < len(tag) && tag[i] > ' ' && tag[i] != ':' && tag[i] != '"' && tag[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			break
		}
		name := tag[:i]
		tag = tag[i+1:]

		i = 1
		for i < len(tag) && tag[i] != '"' {
			if tag[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(tag) {
			break
		}
		quoted := tag[:i+1]
		tag = tag[i+1:]

		if name == key {
			value, err := strconv.Unquote(quoted)
			if err != nil {
				break
			}
			out = append(out, value)
		}
	}
	return out
}

// fileImports maps the names a file refers to its imports by onto their
// paths. Blank and dot imports are left out.
func fileImports(file *ast.File) map[string]string {
	imports := make(map[string]string)
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := model.PackageName(path)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		imports[name] = path
	}
	return imports
}

// receiverName returns the base type name of a method receiver and whether the
// receiver is a pointer.
func receiverName(expr ast.Expr) (string, bool) {
	pointer := false
	if star, ok := expr.(*ast.StarExpr); ok {
		pointer = true
		expr = star.X
	}
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, pointer
	case *ast.IndexExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name, pointer
		}
	case *ast.IndexListExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name, pointer
		}
	}
	return "", false
}

// embeddedName returns the field name Go gives an embedded field.
func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return embeddedName(t.X)
	case *ast.IndexListExpr:
		return embeddedName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return typeString(expr)
	}
}

func typeParams(list *ast.FieldList) []string {
	if list == nil {
		return nil
	}
	var out []string
	for _, f := range list.List {
		for _, n := range f.Names {
			out = append(out, n.Name)
		}
	}
	return out
}

// kindOf names the kind of a non-struct, non-interface type expression.
func kindOf(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.ArrayType:
		if t.Len == nil {
			return "slice"
		}
		return "array"
	case *ast.MapType:
		return "map"
	case *ast.ChanType:
		return "channel"
	case *ast.FuncType:
		return "func"
	case *ast.StarExpr:
		return "pointer"
	default:
		return "defined (" + typeString(expr) + ")"
	}
}

// typeString converts an ast.Expr representing a type into a human-readable Go
// type string, e.g. "string", "time.Time", "[]Genre", "map[string][]byte".
func typeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		// e.g., time.Time
		if x, ok := t.X.(*ast.Ident); ok {
			return x.Name + "." + t.Sel.Name
		}
		return t.Sel.Name
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + typeString(t.Elt)
		}
		return "[" + types.ExprString(t.Len) + "]" + typeString(t.Elt)
	case *ast.StarExpr:
		return "*" + typeString(t.X)
	case *ast.MapType:
		return "map[" + typeString(t.Key) + "]" + typeString(t.Value)
	default:
		return types.ExprString(expr)
	}
}
