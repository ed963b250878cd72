package generator

import (
	"flag"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlwelles/heapsizegen/model"
	hsparser "github.com/mlwelles/heapsizegen/parser"
	"github.com/mlwelles/heapsizegen/resolver"
)

var update = flag.Bool("update", false, "update golden files")

// exampleDir returns the absolute path to the example package, whose checked-in
// heapsize_gen.go is the golden file.
func exampleDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// thisFile = .../generator/generator_test.go
	repoRoot := filepath.Dir(filepath.Dir(thisFile))
	return filepath.Join(repoRoot, "example")
}

func examplePlans(t *testing.T) (*model.Package, []*model.TypePlan) {
	t.Helper()
	dir := exampleDir(t)
	pkg, err := hsparser.Parse(dir)
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", dir, err)
	}
	plans, err := resolver.ResolvePackage(pkg)
	if err != nil {
		t.Fatalf("ResolvePackage failed: %v", err)
	}
	return pkg, plans
}

func TestGenerate(t *testing.T) {
	pkg, plans := examplePlans(t)

	// Generate to a temp directory.
	tmpDir := t.TempDir()
	if err := Generate(pkg, plans, tmpDir); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	golden := filepath.Join(exampleDir(t), DefaultOutput)
	generatedData, err := os.ReadFile(filepath.Join(tmpDir, DefaultOutput))
	if err != nil {
		t.Fatalf("reading generated file: %v", err)
	}

	if *update {
		t.Log("Updating golden file...")
		if err := os.WriteFile(golden, generatedData, 0o644); err != nil {
			t.Fatal(err)
		}
		return
	}

	goldenData, err := os.ReadFile(golden)
	if err != nil {
		t.Fatalf("reading golden file %s: %v\nRun with -update to create it.", golden, err)
	}

	if string(goldenData) != string(generatedData) {
		t.Errorf("generated output differs from golden file %s", golden)
		// Show a diff summary.
		goldenLines := strings.Split(string(goldenData), "\n")
		generatedLines := strings.Split(string(generatedData), "\n")
		maxLines := max(len(goldenLines), len(generatedLines))
		diffCount := 0
		for i := 0; i < maxLines; i++ {
			var gl, genl string
			if i < len(goldenLines) {
				gl = goldenLines[i]
			}
			if i < len(generatedLines) {
				genl = generatedLines[i]
			}
			if gl != genl {
				if diffCount < 10 {
					t.Errorf("  line %d:\n    golden:    %q\n    generated: %q", i+1, gl, genl)
				}
				diffCount++
			}
		}
		if diffCount > 10 {
			t.Errorf("  ... and %d more differences", diffCount-10)
		}
	}
}

func TestGenerateHeader(t *testing.T) {
	pkg, plans := examplePlans(t)

	src, err := Render(pkg, plans, Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(src), "// Code generated by heapsizegen. DO NOT EDIT."))

	// the output is a valid Go file
	_, err = parser.ParseFile(token.NewFileSet(), DefaultOutput, src, parser.ParseComments)
	require.NoError(t, err)
}

func TestRenderDeterministic(t *testing.T) {
	pkg, plans := examplePlans(t)

	first, err := Render(pkg, plans, Options{})
	require.NoError(t, err)
	for range 5 {
		again, err := Render(pkg, plans, Options{})
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func recordPlan(name string, params []string, fields ...model.FieldPlan) *model.TypePlan {
	return &model.TypePlan{
		Type:   &model.TypeSchema{Name: name, Kind: model.KindRecord, TypeParams: params},
		Fields: fields,
	}
}

func trait(name string) model.FieldPlan {
	return model.FieldPlan{Field: model.FieldSchema{Name: name}, Kind: model.PlanTrait}
}

func custom(name, fn, path, importName string) model.FieldPlan {
	return model.FieldPlan{
		Field:      model.FieldSchema{Name: name},
		Kind:       model.PlanCustom,
		Func:       fn,
		ImportPath: path,
		ImportName: importName,
	}
}

func skip(name string) model.FieldPlan {
	return model.FieldPlan{Field: model.FieldSchema{Name: name}}
}

func TestRender(t *testing.T) {
	pkg := &model.Package{Name: "demo"}

	t.Run("all skipped needs no imports", func(t *testing.T) {
		src, err := Render(pkg, []*model.TypePlan{recordPlan("Empty", nil, skip("A"), skip("B"))}, Options{})
		require.NoError(t, err)
		assert.NotContains(t, string(src), "import")
		assert.Contains(t, string(src), "func (x *Empty) HeapSize() int {\n\treturn 0\n}")
	})

	t.Run("generic receiver", func(t *testing.T) {
		src, err := Render(pkg, []*model.TypePlan{recordPlan("Pair", []string{"K", "V"}, trait("Key"), skip("n"), trait("Value"))}, Options{})
		require.NoError(t, err)
		assert.Contains(t, string(src), "func (x *Pair[K, V]) HeapSize() int {")
		assert.Contains(t, string(src), "return heapsize.Of(&x.Key) +\n\t\theapsize.Of(&x.Value)\n")
		assert.NotContains(t, string(src), "x.n")
	})

	t.Run("custom functions and aliases", func(t *testing.T) {
		plan := recordPlan("Blob",
			nil,
			custom("A", "localSize", "", ""),
			custom("B", "Cache", "example.com/sizes", "sz"),
			custom("C", "Map", "github.com/acme/go-sizes/v2", "sizes"),
			custom("D", "List", "example.com/sizes", "sz"),
			custom("E", "Other", "example.com/other/sizes", "sizes"),
		)
		src, err := Render(pkg, []*model.TypePlan{plan}, Options{})
		require.NoError(t, err)
		out := string(src)
		assert.Contains(t, out, `sz "example.com/sizes"`)
		assert.Contains(t, out, `"github.com/acme/go-sizes/v2"`)
		assert.Contains(t, out, `sizes2 "example.com/other/sizes"`)
		assert.Contains(t, out, "localSize(&x.A)")
		assert.Contains(t, out, "sz.Cache(&x.B)")
		assert.Contains(t, out, "sizes.Map(&x.C)")
		assert.Contains(t, out, "sz.List(&x.D)")
		assert.Contains(t, out, "sizes2.Other(&x.E)")
		assert.NotContains(t, out, DefaultRuntimeImport, "no trait fields, no runtime import")
	})

	t.Run("options", func(t *testing.T) {
		src, err := Render(pkg, []*model.TypePlan{recordPlan("R", nil, trait("A"))}, Options{
			RuntimeImport: "example.com/mem/heapsize",
			Receiver:      "r",
		})
		require.NoError(t, err)
		assert.Contains(t, string(src), `"example.com/mem/heapsize"`)
		assert.Contains(t, string(src), "func (r *R) HeapSize() int {\n\tif r == nil {")
		assert.Contains(t, string(src), "heapsize.Of(&r.A)")
	})

	t.Run("union", func(t *testing.T) {
		plan := &model.TypePlan{
			Type: &model.TypeSchema{Name: "Shape", Kind: model.KindUnion},
			Variants: []model.VariantPlan{
				{Variant: model.VariantSchema{Name: "Circle"}, Fields: []model.FieldPlan{skip("Radius")}},
				{Variant: model.VariantSchema{Name: "Polygon", Pointer: true}, Fields: []model.FieldPlan{trait("Points")}},
			},
		}
		src, err := Render(pkg, []*model.TypePlan{plan}, Options{})
		require.NoError(t, err)
		out := string(src)
		assert.Contains(t, out, "func (x *Circle) HeapSize() int {\n\treturn 0\n}")
		assert.Contains(t, out, "func HeapSizeOfShape(v Shape) int {")
		assert.Contains(t, out, "\tcase *Circle:\n\t\treturn v.HeapSize()\n\tcase Circle:\n")
		assert.Contains(t, out, "\tcase *Polygon:\n")
		assert.NotContains(t, out, "case Polygon:")
	})

	t.Run("union without variants", func(t *testing.T) {
		plan := &model.TypePlan{Type: &model.TypeSchema{Name: "Hook", Kind: model.KindUnion}}
		src, err := Render(pkg, []*model.TypePlan{plan}, Options{})
		require.NoError(t, err)
		assert.Contains(t, string(src), "func HeapSizeOfHook(Hook) int {\n\treturn 0\n}")
	})

	t.Run("unsupported plan", func(t *testing.T) {
		plan := &model.TypePlan{Type: &model.TypeSchema{Name: "Names", Kind: model.KindUnsupported}}
		_, err := Render(pkg, []*model.TypePlan{plan}, Options{})
		assert.Error(t, err)
	})

	t.Run("types with embedded fields are declared", func(t *testing.T) {
		embedded := trait("Revision")
		embedded.Field.Embedded = true
		union := &model.TypePlan{
			Type: &model.TypeSchema{Name: "Event", Kind: model.KindUnion},
			Variants: []model.VariantPlan{
				{Variant: model.VariantSchema{Name: "Created"}, Fields: []model.FieldPlan{embedded}},
				{Variant: model.VariantSchema{Name: "Deleted"}, Fields: []model.FieldPlan{trait("ID")}},
			},
		}
		src, err := Render(pkg, []*model.TypePlan{
			recordPlan("Doc", nil, embedded, skip("n")),
			recordPlan("Pair", []string{"K", "V"}, embedded),
			recordPlan("Flat", nil, trait("A")),
			union,
		}, Options{})
		require.NoError(t, err)
		out := string(src)
		assert.Contains(t, out, "func init() {\n\theapsize.Declare[Doc]()\n\theapsize.Declare[Created]()\n}\n")
		assert.NotContains(t, out, "Declare[Pair")
		assert.NotContains(t, out, "Declare[Flat]")
		assert.NotContains(t, out, "Declare[Deleted]")
	})

	t.Run("declaring imports the runtime", func(t *testing.T) {
		embedded := custom("Revision", "Rev", "example.com/sizes", "sizes")
		embedded.Field.Embedded = true
		src, err := Render(pkg, []*model.TypePlan{recordPlan("Doc", nil, embedded)}, Options{})
		require.NoError(t, err)
		out := string(src)
		assert.Contains(t, out, `"`+DefaultRuntimeImport+`"`)
		assert.Contains(t, out, "heapsize.Declare[Doc]()")
	})

	t.Run("non-struct variant", func(t *testing.T) {
		plan := &model.TypePlan{
			Type: &model.TypeSchema{Name: "Value", Kind: model.KindUnion},
			Variants: []model.VariantPlan{
				{Variant: model.VariantSchema{Name: "Names", Detail: "Names is a slice type; union variants must be struct types"}},
			},
		}
		_, err := Render(pkg, []*model.TypePlan{plan}, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Names")
	})

	t.Run("non-struct variant from source", func(t *testing.T) {
		_, thisFile, _, _ := runtime.Caller(0)
		dir := filepath.Join(filepath.Dir(filepath.Dir(thisFile)), "parser", "testdata", "variants")
		parsed, err := hsparser.Parse(dir)
		require.NoError(t, err)
		plans, err := resolver.ResolvePackage(parsed)
		require.Error(t, err)
		assert.Nil(t, plans)
		assert.Contains(t, err.Error(), "Value.Names")
		assert.Contains(t, err.Error(), "Value.Code")
	})

	t.Run("package named like the runtime", func(t *testing.T) {
		_, err := Render(&model.Package{Name: "heapsize"}, []*model.TypePlan{recordPlan("R", nil, trait("A"))}, Options{})
		assert.Error(t, err)
	})
}

func TestDefaultOutputShared(t *testing.T) {
	// The parser must skip exactly the file the generator writes.
	assert.Equal(t, DefaultOutput, hsparser.DefaultOutput)
	assert.Equal(t, model.DefaultOutput, DefaultOutput)
}

func TestGenerateWithOptions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	err := GenerateWithOptions(&model.Package{Name: "demo"}, []*model.TypePlan{recordPlan("R", nil, trait("A"))}, dir, Options{Output: "sizes_gen.go"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "sizes_gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "package demo")
}
