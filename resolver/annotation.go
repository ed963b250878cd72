package resolver

import (
	"go/token"
	"strings"

	"github.com/mlwelles/heapsizegen/diag"
	"github.com/mlwelles/heapsizegen/model"
)

const withUsage = "`with` must name a function path, `with=pkg.Func`"

// Parse validates the text of one annotation. The returned builder carries the
// kind, text and detail of the problem; the caller adds target and position.
//
// Accepted forms:
//
//	all                   every field counts
//	include               the field counts (also the empty tag value)
//	skip                  the field or variant does not count
//	with=Func             the field counts via a same-package function
//	with=pkg.Func         ... a function of an imported package
//	with=path/to/pkg.Func ... a function of a package by import path
func Parse(raw model.RawAnnotation) (model.Annotation, *diag.Builder) {
	text := raw.Text
	fail := func(kind diag.Kind, msg string, args ...any) (model.Annotation, *diag.Builder) {
		return model.Annotation{}, diag.New(kind).Text(text).Detail(msg, args...)
	}

	if strings.Contains(text, ",") {
		return fail(diag.KindDuplicate, "too many heapsize annotations in %q", text)
	}

	ann := model.Annotation{Raw: raw}
	switch {
	case text == "" && raw.Source == model.SourceTag, text == "include":
		ann.Kind = model.AnnotInclude
	case text == "all":
		ann.Kind = model.AnnotAll
	case text == "skip":
		ann.Kind = model.AnnotSkip
	case text == "with":
		return fail(diag.KindMalformed, "%s", withUsage)
	case strings.HasPrefix(text, "with="):
		path := strings.TrimSpace(strings.TrimPrefix(text, "with="))
		if !validPath(path) {
			return fail(diag.KindMalformed, "%s; got %q", withUsage, path)
		}
		ann.Kind = model.AnnotWith
		ann.Path = path
	case text == "":
		return fail(diag.KindMalformed, "empty heapsize annotation")
	default:
		return fail(diag.KindMalformed, "unknown heapsize annotation `%s`", text)
	}
	return ann, nil
}

// splitPath splits a function path into its package qualifier and function
// name. The qualifier is empty for same-package functions.
func splitPath(path string) (qualifier, fn string) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "", path
	}
	// The dot must follow the last path element, not sit inside a domain.
	if j := strings.LastIndexByte(path, '/'); j > i {
		return "", path
	}
	return path[:i], path[i+1:]
}

func validPath(path string) bool {
	if path == "" {
		return false
	}
	qualifier, fn := splitPath(path)
	if !token.IsIdentifier(fn) {
		return false
	}
	if qualifier == "" {
		return !strings.ContainsAny(path, "/.")
	}
	if strings.Contains(qualifier, "/") {
		return !strings.ContainsAny(qualifier, " \t\"`\\") && !strings.HasSuffix(qualifier, "/") && !strings.HasPrefix(qualifier, "/")
	}
	return token.IsIdentifier(qualifier)
}
