// Package resolver turns extracted type schemas into field plans. It is the
// only place generation-time diagnostics are produced: annotations are
// validated, placed and combined by precedence, and every problem is reported
// against its own target.
package resolver

import (
	"go/token"
	"strings"

	"github.com/mlwelles/heapsizegen/diag"
	"github.com/mlwelles/heapsizegen/model"
)

// level is where an annotation was written.
type level int

const (
	levelType level = iota
	levelVariant
	levelField
)

// ResolvePackage resolves every type of pkg. When any type is invalid it
// returns the diagnostics of all types as one diag.List and no plans.
func ResolvePackage(pkg *model.Package) ([]*model.TypePlan, error) {
	var (
		plans []*model.TypePlan
		all   diag.List
	)
	for _, s := range pkg.Types {
		plan, diags := resolve(s)
		if len(diags) > 0 {
			all = append(all, diags...)
			continue
		}
		plans = append(plans, plan)
	}
	if len(all) > 0 {
		return nil, all
	}
	return plans, nil
}

// Resolve returns the plan of one type, or a diag.List describing every
// invalid annotation on it.
func Resolve(s *model.TypeSchema) (*model.TypePlan, error) {
	plan, diags := resolve(s)
	if len(diags) > 0 {
		return nil, diags
	}
	return plan, nil
}

func resolve(s *model.TypeSchema) (*model.TypePlan, diag.List) {
	r := &resolution{schema: s}

	switch s.Kind {
	case model.KindRecord:
		return r.record(), r.diags
	case model.KindUnion:
		return r.union(), r.diags
	default:
		detail := s.Detail
		if detail == "" {
			detail = "heapsize methods cannot be generated for " + s.Name
		}
		r.report(diag.New(diag.KindUnsupported).
			Target(s.Name).
			Pos(s.Pos).
			Detail("%s", detail))
		return nil, r.diags
	}
}

// resolution accumulates the diagnostics of one type.
type resolution struct {
	schema *model.TypeSchema
	diags  diag.List
}

func (r *resolution) report(b *diag.Builder) {
	r.diags = append(r.diags, b.Build())
}

func (r *resolution) record() *model.TypePlan {
	s := r.schema
	typeAnn, typeBad := r.check(levelType, s.Annotations, s.Pos, s.Name)

	scope := scope{
		typeAll:  isKind(typeAnn, model.AnnotAll),
		suppress: typeBad,
		imports:  s.Imports,
	}
	return &model.TypePlan{
		Type:   s,
		Fields: r.fields(s.Fields, scope, s.Name),
	}
}

func (r *resolution) union() *model.TypePlan {
	s := r.schema
	typeAnn, typeBad := r.check(levelType, s.Annotations, s.Pos, s.Name)
	typeAll := isKind(typeAnn, model.AnnotAll)

	plan := &model.TypePlan{Type: s}
	for _, v := range s.Variants {
		if v.Detail != "" {
			r.report(diag.New(diag.KindUnsupported).
				Target(s.Name, v.Name).
				Pos(v.Pos).
				Detail("%s", v.Detail))
			continue
		}
		varAnn, varBad := r.check(levelVariant, v.Annotations, v.Pos, s.Name, v.Name)

		if isKind(varAnn, model.AnnotSkip) && !typeAll && !typeBad {
			r.report(diag.New(diag.KindIllegalSkip).
				Target(s.Name, v.Name).
				Pos(varAnn.Raw.Pos).
				Text(varAnn.Raw.Text).
				Detail("`skip` on a variant is only allowed when %s carries `all`", s.Name))
			varBad = true
		}

		scope := scope{
			typeAll:    typeAll,
			variantAll: isKind(varAnn, model.AnnotAll),
			skipAll:    isKind(varAnn, model.AnnotSkip),
			suppress:   typeBad || varBad,
			imports:    v.Imports,
		}
		plan.Variants = append(plan.Variants, model.VariantPlan{
			Variant: v,
			Fields:  r.fields(v.Fields, scope, s.Name, v.Name),
		})
	}
	return plan
}

// scope is what the enclosing type and variant contribute to a field's plan.
type scope struct {
	typeAll    bool
	variantAll bool
	skipAll    bool // the variant is skipped
	suppress   bool // an enclosing annotation is invalid
	imports    map[string]string
}

func (sc scope) includeAll() bool { return sc.typeAll || sc.variantAll }

// fields resolves each field by precedence: field annotation, variant skip,
// variant all, type all, and finally skip.
func (r *resolution) fields(fields []model.FieldSchema, sc scope, path ...string) []model.FieldPlan {
	plans := make([]model.FieldPlan, 0, len(fields))
	for _, f := range fields {
		target := append(append([]string(nil), path...), f.Name)
		plan := model.FieldPlan{Field: f, Kind: model.PlanSkip}

		ann, bad := r.check(levelField, f.Annotations, f.Pos, target...)
		switch {
		case bad:
		case ann != nil:
			switch ann.Kind {
			case model.AnnotInclude:
				plan.Kind = model.PlanTrait
			case model.AnnotWith:
				if r.custom(&plan, ann, sc.imports, target) {
					plan.Kind = model.PlanCustom
				}
			case model.AnnotSkip:
				if !sc.includeAll() && !sc.suppress {
					r.report(diag.New(diag.KindIllegalSkip).
						Target(target...).
						Pos(ann.Raw.Pos).
						Text(ann.Raw.Text).
						Detail("`skip` is only allowed when the enclosing type or variant carries `all`"))
				}
			}
		case sc.skipAll:
		case sc.includeAll():
			plan.Kind = model.PlanTrait
		}
		plans = append(plans, plan)
	}
	return plans
}

// custom fills in the function of an IncludeVia plan. The qualifier of the path
// is either a name imported by the declaring file or a full import path.
func (r *resolution) custom(plan *model.FieldPlan, ann *model.Annotation, imports map[string]string, target []string) bool {
	qualifier, fn := splitPath(ann.Path)
	plan.Func = fn
	if qualifier == "" {
		return true
	}
	if strings.Contains(qualifier, "/") {
		plan.ImportPath = qualifier
		plan.ImportName = model.PackageName(qualifier)
		return true
	}
	path, ok := imports[qualifier]
	if !ok {
		r.report(diag.New(diag.KindMalformed).
			Target(target...).
			Pos(ann.Raw.Pos).
			Text(ann.Raw.Text).
			Detail("package %s in `%s` is not imported by the declaring file; import it or use the full import path", qualifier, ann.Raw.Text))
		return false
	}
	plan.ImportPath = path
	plan.ImportName = qualifier
	return true
}

// check validates the annotations written on one target. It returns the
// annotation, or nil if there is none, and whether the target's annotations
// are invalid.
func (r *resolution) check(lvl level, raws []model.RawAnnotation, pos token.Position, target ...string) (*model.Annotation, bool) {
	switch len(raws) {
	case 0:
		return nil, false
	case 1:
	default:
		r.report(diag.New(diag.KindDuplicate).
			Target(target...).
			Pos(raws[1].Pos).
			Text(raws[1].Text).
			Detail("too many heapsize annotations; found %d", len(raws)))
		return nil, true
	}

	raw := raws[0]
	if !raw.Pos.IsValid() {
		raw.Pos = pos
	}
	ann, err := Parse(raw)
	if err != nil {
		r.report(err.Target(target...).Pos(raw.Pos))
		return nil, true
	}

	var misplaced string
	switch {
	case lvl == levelType && ann.Kind == model.AnnotSkip:
		misplaced = "`skip` is a field or variant annotation"
	case lvl == levelField && ann.Kind == model.AnnotAll:
		misplaced = "`all` is a type or variant annotation"
	case lvl != levelField && (ann.Kind == model.AnnotInclude || ann.Kind == model.AnnotWith):
		misplaced = "`" + ann.Kind.String() + "` is a field annotation"
	}
	if misplaced != "" {
		r.report(diag.New(diag.KindMisplaced).
			Target(target...).
			Pos(raw.Pos).
			Text(raw.Text).
			Detail("%s", misplaced))
		return nil, true
	}
	return &ann, false
}

func isKind(a *model.Annotation, k model.AnnotationKind) bool {
	return a != nil && a.Kind == k
}
