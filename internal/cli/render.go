package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ddx-ranking-engine/internal/domain"
)

var (
	accent = lipgloss.Color("#00afaf")
	dim    = lipgloss.Color("#6e7681")
	danger = lipgloss.Color("#ff5f5f")
	warn   = lipgloss.Color("#ffaf00")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	helpStyle     = lipgloss.NewStyle().Foreground(dim)
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(danger)
	warningStyle  = lipgloss.NewStyle().Bold(true).Foreground(warn)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(dim)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderResult(w io.Writer, result *domain.RankResult) {
	fmt.Fprintln(w, titleStyle.Render("Differential diagnosis"))

	if len(result.Candidates) == 0 {
		fmt.Fprintln(w, helpStyle.Render("No candidate matched the profile."))
	} else {
		t := newTable("#", "Diagnosis", "Score", "Source", "Justification")
		for _, c := range result.Candidates {
			name := c.CanonicalName
			if c.Excluded {
				name += " (excluded)"
			}
			t.Row(strconv.Itoa(c.Rank), name, fmt.Sprintf("%.3f", c.Score), string(c.EvidenceType), c.Justification)
		}
		fmt.Fprintln(w, t.String())
	}

	if len(result.Excluded) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Excluded"))
		t := newTable("Diagnosis", "Reason")
		for _, c := range result.Excluded {
			t.Row(c.CanonicalName, c.ExclusionReason)
		}
		fmt.Fprintln(w, t.String())
	}

	for _, f := range result.RedFlags {
		style := warningStyle
		if f.Severity == domain.SEVERITY_CRITICAL {
			style = criticalStyle
		}
		fmt.Fprintf(w, "%s %s: %s\n", style.Render("["+f.Severity+"]"), f.Flag, f.Reason)
	}

	fmt.Fprintln(w, helpStyle.Render(fmt.Sprintf("run %s  %d ms  cached=%t", result.RunID, result.DurationMs, result.Cached)))
}

func renderSources(w io.Writer, stats []domain.SourceStat) {
	t := newTable("Source", "Evidence type", "Available")
	for _, st := range stats {
		t.Row(st.Name, string(st.EvidenceType), strconv.FormatBool(st.Available))
	}
	fmt.Fprintln(w, t.String())
}

func renderAuditRuns(w io.Writer, runs []*domain.AuditRecord, total int64) {
	if len(runs) == 0 {
		fmt.Fprintln(w, helpStyle.Render("No recorded runs."))
		return
	}
	t := newTable("Run", "Created", "Top diagnosis", "Candidates", "Excluded", "ms")
	for _, r := range runs {
		top := "-"
		if len(r.Candidates) > 0 {
			top = r.Candidates[0].CanonicalName
		}
		t.Row(r.RunID, r.CreatedAt.Format("2006-01-02 15:04:05"), top,
			strconv.Itoa(len(r.Candidates)), strconv.Itoa(len(r.Excluded)), strconv.FormatInt(r.DurationMs, 10))
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w, helpStyle.Render(fmt.Sprintf("%d of %d runs", len(runs), total)))
}
