// Package generator renders resolved type plans into Go source. One file is
// written per package; it holds a HeapSize method for every record and union
// variant, and a HeapSizeOf<Union> dispatcher for every union.
package generator

import (
	"bytes"
	"embed"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/mlwelles/heapsizegen/model"
)

// DefaultRuntimeImport is the import path of the runtime library generated
// code calls into.
const DefaultRuntimeImport = "github.com/mlwelles/heapsizegen/heapsize"

// DefaultOutput is the name of the generated file.
const DefaultOutput = model.DefaultOutput

// DefaultReceiver is the receiver name of generated methods.
const DefaultReceiver = "x"

//go:embed templates/*.tmpl
var templateFS embed.FS

var tmpl = template.Must(
	template.New("heapsize.go.tmpl").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// Options controls rendering.
type Options struct {
	Output        string // file name, default heapsize_gen.go
	RuntimeImport string // import path of the heapsize runtime
	Receiver      string // receiver name of generated methods
}

func (o Options) withDefaults() Options {
	if o.Output == "" {
		o.Output = DefaultOutput
	}
	if o.RuntimeImport == "" {
		o.RuntimeImport = DefaultRuntimeImport
	}
	if o.Receiver == "" {
		o.Receiver = DefaultReceiver
	}
	return o
}

// Generate renders plans and writes the result to outDir.
func Generate(pkg *model.Package, plans []*model.TypePlan, outDir string) error {
	return GenerateWithOptions(pkg, plans, outDir, Options{})
}

// GenerateWithOptions is Generate with explicit options.
func GenerateWithOptions(pkg *model.Package, plans []*model.TypePlan, outDir string, opts Options) error {
	opts = opts.withDefaults()

	src, err := Render(pkg, plans, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", outDir, err)
	}
	path := filepath.Join(outDir, opts.Output)
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	Logger().Info("generated heapsize methods",
		zap.String("package", pkg.Name),
		zap.String("file", path),
		zap.Int("types", len(plans)))
	return nil
}

// Render returns the formatted source for plans. Identical input yields
// identical output.
func Render(pkg *model.Package, plans []*model.TypePlan, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	data, err := buildFile(pkg.Name, plans, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting generated code: %w\n%s", err, buf.Bytes())
	}
	return src, nil
}

type fileData struct {
	Package  string
	Runtime  string // name the runtime package is imported by
	Imports  []importSpec
	Types    []typeData
	Declared []string // types whose HeapSize could be mistaken for a promoted one
}

type importSpec struct {
	Name  string
	Path  string
	Alias bool
}

type typeData struct {
	Name     string
	Union    bool
	Method   methodData   // record
	Variants []methodData // union
	Cases    []string     // union type switch cases
}

type methodData struct {
	Recv  string
	Type  string // receiver type, with type parameters
	Terms []string
}

// importSet assigns every imported package a unique name in the generated
// file.
type importSet struct {
	byPath map[string]*importSpec
	byName map[string]string
}

func newImportSet() *importSet {
	return &importSet{byPath: map[string]*importSpec{}, byName: map[string]string{}}
}

// add returns the name the generated file refers to path by, preferring name.
func (s *importSet) add(path, name string) string {
	if spec, ok := s.byPath[path]; ok {
		return spec.Name
	}
	unique := name
	for i := 2; ; i++ {
		if _, taken := s.byName[unique]; !taken {
			break
		}
		unique = fmt.Sprintf("%s%d", name, i)
	}
	s.byName[unique] = path
	s.byPath[path] = &importSpec{
		Name:  unique,
		Path:  path,
		Alias: unique != model.PackageName(path),
	}
	return unique
}

func (s *importSet) specs() []importSpec {
	out := make([]importSpec, 0, len(s.byPath))
	for _, spec := range s.byPath {
		out = append(out, *spec)
	}
	slices.SortFunc(out, func(a, b importSpec) int { return strings.Compare(a.Path, b.Path) })
	return out
}

func buildFile(pkgName string, plans []*model.TypePlan, opts Options) (*fileData, error) {
	imports := newImportSet()
	runtimeName := model.PackageName(opts.RuntimeImport)
	if pkgName == runtimeName {
		return nil, fmt.Errorf("package %s has the same name as the runtime package %s", pkgName, opts.RuntimeImport)
	}

	terms := func(fields []model.FieldPlan) []string {
		var out []string
		for _, p := range model.Counted(fields) {
			ref := "&" + opts.Receiver + "." + p.Field.Name
			switch p.Kind {
			case model.PlanTrait:
				name := imports.add(opts.RuntimeImport, runtimeName)
				out = append(out, name+".Of("+ref+")")
			case model.PlanCustom:
				fn := p.Func
				if p.ImportPath != "" {
					fn = imports.add(p.ImportPath, p.ImportName) + "." + p.Func
				}
				out = append(out, fn+"("+ref+")")
			}
		}
		return out
	}

	data := &fileData{Package: pkgName}
	for _, plan := range plans {
		t := plan.Type
		td := typeData{Name: t.Name}

		switch t.Kind {
		case model.KindRecord:
			td.Method = methodData{
				Recv:  opts.Receiver,
				Type:  instantiated(t.Name, t.TypeParams),
				Terms: terms(plan.Fields),
			}
			if len(t.TypeParams) == 0 && embeds(plan.Fields) {
				data.Declared = append(data.Declared, t.Name)
			}
		case model.KindUnion:
			td.Union = true
			for _, vp := range plan.Variants {
				v := vp.Variant
				if v.Detail != "" {
					return nil, fmt.Errorf("cannot render variant %s of %s: %s", v.Name, t.Name, v.Detail)
				}
				td.Variants = append(td.Variants, methodData{
					Recv:  opts.Receiver,
					Type:  v.Name,
					Terms: terms(vp.Fields),
				})
				if embeds(vp.Fields) {
					data.Declared = append(data.Declared, v.Name)
				}
				td.Cases = append(td.Cases, "*"+v.Name)
				if !v.Pointer {
					td.Cases = append(td.Cases, v.Name)
				}
			}
		default:
			return nil, fmt.Errorf("cannot render %s type %s", t.Kind, t.Name)
		}
		data.Types = append(data.Types, td)
	}
	if len(data.Declared) > 0 {
		data.Runtime = imports.add(opts.RuntimeImport, runtimeName)
	}
	data.Imports = imports.specs()
	return data, nil
}

// embeds reports whether any field is embedded. A struct with an embedded
// field may have a HeapSize promoted from it, so the runtime only trusts the
// generated method once the type is declared.
func embeds(fields []model.FieldPlan) bool {
	for _, p := range fields {
		if p.Field.Embedded {
			return true
		}
	}
	return false
}

// instantiated returns the receiver type of a possibly generic type, e.g.
// "Pair[K, V]".
func instantiated(name string, params []string) string {
	if len(params) == 0 {
		return name
	}
	return name + "[" + strings.Join(params, ", ") + "]"
}
