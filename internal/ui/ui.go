// Package ui renders run progress and the end-of-run summary for the
// terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/siterank/internal/analysis"
	"github.com/papapumpkin/siterank/internal/export"
	"github.com/papapumpkin/siterank/internal/opportunity"
)

// TopPages is how many pages the summary lists.
const TopPages = 5

// Printer writes human-oriented output, by default to stderr so stdout
// stays free for piping.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to stderr.
func New() *Printer {
	return &Printer{w: os.Stderr}
}

// NewWriter returns a Printer writing to w.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Banner prints the run header.
func (p *Printer) Banner(sitePrefix string) {
	fmt.Fprintln(p.w, styleTitle.Render("siterank")+" "+styleDim.Render("authority analysis of "+sitePrefix))
}

// Info prints a neutral progress line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, styleDim.Render(iconBullet)+" "+msg)
}

// Warning prints one run warning.
func (p *Printer) Warning(w analysis.Warning) {
	fmt.Fprintln(p.w, styleWarning.Render(iconWarning+" "+string(w.Kind))+" "+w.Detail)
}

// Error prints a failure.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.w, styleError.Render(iconFailed+" error:")+" "+msg)
}

// Written lists the files a run produced.
func (p *Printer) Written(dir string, paths []string) {
	fmt.Fprintln(p.w, styleSuccess.Render(iconDone)+fmt.Sprintf(" wrote %d files to %s", len(paths), dir))
}

// Summary prints the end-of-run digest.
func (p *Printer) Summary(res *analysis.Result) {
	fmt.Fprintln(p.w, RenderSummary(res))
}

// RenderSummary lays out graph, authority, findings and top pages of a
// run in a bordered box.
func RenderSummary(res *analysis.Result) string {
	s := export.Summarize(res)
	var b strings.Builder

	b.WriteString(styleTitle.Render("Run summary"))
	b.WriteString("\n")
	row(&b, "pages", fmt.Sprintf("%d", s.Pages))
	row(&b, "links", fmt.Sprintf("%d (%d arcs, %d self-loops, %d external dropped)",
		s.Graph.Links, s.Graph.Arcs, s.Graph.SelfLoops, s.Graph.ExternalEdges))
	row(&b, "islands", fmt.Sprintf("%d components, %d isolated pages", s.Graph.Components, s.Graph.Isolated))
	for _, name := range []string{analysis.GraphStandard, analysis.GraphWeighted} {
		r := s.Authority[name]
		status := styleSuccess.Render(iconDone + " converged")
		if !r.Converged {
			status = styleWarning.Render(iconWarning + " not converged")
		}
		row(&b, name+" authority", fmt.Sprintf("%d iterations %s", r.Iterations, status))
	}

	b.WriteString(styleSection.Render("Findings"))
	b.WriteString("\n")
	for _, tag := range opportunity.Tags() {
		row(&b, string(tag), findingLine(tag, res.Opportunities.ByTag(tag)))
	}

	b.WriteString(styleSection.Render("Top pages by performance"))
	b.WriteString("\n")
	top := s.TopPages
	if len(top) > TopPages {
		top = top[:TopPages]
	}
	for i, pg := range top {
		fmt.Fprintf(&b, "%s %s %s\n",
			styleDim.Render(fmt.Sprintf("%d.", i+1)),
			styleValue.Render(fmt.Sprintf("%.3f", pg.PerformanceScore)),
			pg.URL)
	}

	if len(s.Warnings) > 0 {
		b.WriteString(styleSection.Render("Warnings"))
		b.WriteString("\n")
		for _, w := range s.Warnings {
			b.WriteString(styleWarning.Render(iconWarning) + " " + w.Detail + "\n")
		}
	}

	return styleBox.Render(strings.TrimRight(b.String(), "\n"))
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, styleLabel.Render(label), styleValue.Render(value)))
	b.WriteString("\n")
}

// findingLine renders the count of a tag, split by priority when the tag
// is tiered.
func findingLine(tag opportunity.Tag, findings []opportunity.Finding) string {
	line := fmt.Sprintf("%d", len(findings))
	if !tag.Prioritized() || len(findings) == 0 {
		return line
	}
	var high, medium, low int
	for _, f := range findings {
		switch f.Priority {
		case opportunity.PriorityHigh:
			high++
		case opportunity.PriorityMedium:
			medium++
		default:
			low++
		}
	}
	return line + styleDim.Render(fmt.Sprintf(" (high %d, medium %d, low %d)", high, medium, low))
}
