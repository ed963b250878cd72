// Package diag provides the structured diagnostics reported while generating
// heap size methods.
//
// A Diagnostic names the offending target (type, variant or field), its source
// position, the category of the problem and a human-readable detail:
//
//	d := diag.New(diag.KindMisplaced).
//		Target("Film", "Name").
//		Pos(pos).
//		Detail("`all` is a type annotation").
//		Build()
//
// Diagnostics are collected into a List so that every invalid target is
// reported on its own. Both types implement error and support errors.Is/As.
package diag
