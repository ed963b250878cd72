package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mlwelles/heapsizegen/config"
	"github.com/mlwelles/heapsizegen/diag"
	"github.com/mlwelles/heapsizegen/model"
)

var (
	posStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	kindStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	targetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))
)

// reporter prints diagnostics, styled when w is a terminal.
type reporter struct {
	w     io.Writer
	color bool
}

func newReporter(w io.Writer) *reporter {
	return &reporter{w: w, color: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *reporter) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *reporter) diagnostics(list diag.List) {
	for _, d := range list {
		var b strings.Builder
		if d.Pos.IsValid() {
			b.WriteString(r.style(posStyle, d.Pos.String()))
			b.WriteString(": ")
		}
		b.WriteString(r.style(kindStyle, string(d.Kind)))
		if len(d.Target) > 0 {
			b.WriteString(" at ")
			b.WriteString(r.style(targetStyle, d.TargetName()))
		}
		if d.Detail != "" {
			b.WriteString(": ")
			b.WriteString(d.Detail)
		}
		if d.Text != "" {
			b.WriteString("\n\t")
			b.WriteString(r.style(textStyle, d.Text))
		}
		fmt.Fprintln(r.w, b.String())
	}

	noun := "diagnostics"
	if len(list) == 1 {
		noun = "diagnostic"
	}
	fmt.Fprintf(r.w, "%d heapsize %s\n", len(list), noun)
}

func (r *reporter) ok(w io.Writer, pkg *model.Package, plans []*model.TypePlan) {
	noun := "types"
	if len(plans) == 1 {
		noun = "type"
	}
	fmt.Fprintf(w, "%s %s: %d %s\n", r.style(okStyle, "ok"), pkg.Name, len(plans), noun)
}

// describe prints the contribution of every field of every plan.
func describe(w io.Writer, pkg *model.Package, plans []*model.TypePlan, cfg *config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	runtimeName := model.PackageName(cfg.RuntimeImport)
	recv := cfg.Receiver

	fields := func(indent string, plans []model.FieldPlan) {
		for _, p := range plans {
			fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", indent, p.Field.Name, p.Field.Type, p.Kind, contribution(p, runtimeName, recv))
		}
	}

	fmt.Fprintf(tw, "package %s\n", pkg.Name)
	for _, plan := range plans {
		t := plan.Type
		fmt.Fprintf(tw, "\n%s\t%s\n", t.Name, t.Kind)
		switch t.Kind {
		case model.KindRecord:
			fields("  ", plan.Fields)
		case model.KindUnion:
			if len(plan.Variants) == 0 {
				fmt.Fprintln(tw, "  (no variants)")
			}
			for _, vp := range plan.Variants {
				name := vp.Variant.Name
				if vp.Variant.Pointer {
					name = "*" + name
				}
				fmt.Fprintf(tw, "  %s\tvariant\n", name)
				fields("    ", vp.Fields)
			}
		}
	}
	return tw.Flush()
}

// contribution returns the expression a plan contributes to the generated sum.
func contribution(p model.FieldPlan, runtimeName, recv string) string {
	ref := "&" + recv + "." + p.Field.Name
	switch p.Kind {
	case model.PlanTrait:
		return runtimeName + ".Of(" + ref + ")"
	case model.PlanCustom:
		fn := p.Func
		if p.ImportName != "" {
			fn = p.ImportName + "." + fn
		}
		return fn + "(" + ref + ")"
	default:
		return "-"
	}
}
