package review

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nix-community/nixpkgs-review/internal/nix"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// systemReport buckets one system's attrs by outcome.
type systemReport struct {
	system      string
	broken      []string
	nonExistent []string
	failed      []string
	built       []string
}

// Report aggregates per-attr outcomes across all systems of one review.
type Report struct {
	systems []systemReport
}

// NewReport categorizes the evaluated attrs of one review.
func NewReport(attrs map[string][]nix.Attr) *Report {
	report := &Report{}

	systems := make([]string, 0, len(attrs))
	for system := range attrs {
		systems = append(systems, system)
	}
	sort.Strings(systems)

	for _, system := range systems {
		sr := systemReport{system: system}
		for _, attr := range attrs[system] {
			switch {
			case !attr.Exists:
				sr.nonExistent = append(sr.nonExistent, attr.Name)
			case attr.Broken:
				sr.broken = append(sr.broken, attr.Name)
			case attr.Failed:
				sr.failed = append(sr.failed, attr.Name)
			default:
				sr.built = append(sr.built, attr.Name)
			}
		}
		sort.Strings(sr.broken)
		sort.Strings(sr.nonExistent)
		sort.Strings(sr.failed)
		sort.Strings(sr.built)
		report.systems = append(report.systems, sr)
	}
	return report
}

// Succeeded reports whether no attr failed to build.
func (r *Report) Succeeded() bool {
	for _, sr := range r.systems {
		if len(sr.failed) > 0 {
			return false
		}
	}
	return true
}

// Markdown renders the report in the format posted as a PR comment.
func (r *Report) Markdown(title string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Result of `%s`\n", title)

	for _, sr := range r.systems {
		fmt.Fprintf(&sb, "\n## `%s`\n", sr.system)
		writeMarkdownSection(&sb, "❓", "marked as non-existent", sr.nonExistent)
		writeMarkdownSection(&sb, "⛔", "marked as broken and skipped", sr.broken)
		writeMarkdownSection(&sb, "❌", "failed to build", sr.failed)
		writeMarkdownSection(&sb, "✅", "built", sr.built)
	}
	return sb.String()
}

func writeMarkdownSection(sb *strings.Builder, emoji, label string, names []string) {
	if len(names) == 0 {
		return
	}
	plural := ""
	if len(names) != 1 {
		plural = "s"
	}
	fmt.Fprintf(sb, "### %s %d package%s %s:\n", emoji, len(names), plural, label)
	for _, name := range names {
		fmt.Fprintf(sb, "- %s\n", name)
	}
}

// Console renders the report for the terminal with per-outcome styling.
func (r *Report) Console() string {
	var sb strings.Builder

	for _, sr := range r.systems {
		sb.WriteString(headerStyle.Render(fmt.Sprintf("=== %s ===", sr.system)))
		sb.WriteString("\n")
		for _, name := range sr.nonExistent {
			sb.WriteString(mutedStyle.Render(fmt.Sprintf("? %s (does not exist)", name)))
			sb.WriteString("\n")
		}
		for _, name := range sr.broken {
			sb.WriteString(mutedStyle.Render(fmt.Sprintf("- %s (marked broken, skipped)", name)))
			sb.WriteString("\n")
		}
		for _, name := range sr.failed {
			sb.WriteString(failureStyle.Render(fmt.Sprintf("✗ %s failed to build", name)))
			sb.WriteString("\n")
		}
		for _, name := range sr.built {
			sb.WriteString(successStyle.Render(fmt.Sprintf("✓ %s built", name)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
