package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a94a6"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)

	tableBorder = lipgloss.NormalBorder()
)

func statusStyle(s models.ReportStatus) lipgloss.Style {
	switch s {
	case models.ReportStatusCompleted:
		return successStyle
	case models.ReportStatusFailed:
		return errorStyle
	case models.ReportStatusTimeout:
		return warnStyle
	}
	return titleStyle
}

// reportMarkdown lays out a completed analysis as markdown.
func reportMarkdown(res *models.AnalysisResults) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", res.Name)
	if res.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", res.Description)
	}

	b.WriteString("## Products\n\n")
	b.WriteString("| | ASIN | Title | Price | BSR | Rating | Reviews |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	writeProductRow(&b, "main", res.MainProduct)
	for _, p := range res.Competitors {
		writeProductRow(&b, "", p)
	}
	b.WriteString("\n")

	if len(res.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, r := range res.Recommendations {
			fmt.Fprintf(&b, "### %s\n\n", r.Title)
			fmt.Fprintf(&b, "*%s, %s priority*\n\n", r.Type, r.Priority)
			if r.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", r.Description)
			}
			if r.Impact != "" {
				fmt.Fprintf(&b, "**Impact:** %s\n\n", r.Impact)
			}
		}
	}

	if res.LastUpdated != "" {
		fmt.Fprintf(&b, "_Updated %s_\n", res.LastUpdated)
	}
	return b.String()
}

func writeProductRow(b *strings.Builder, label string, p models.CompetitorProduct) {
	title := strings.ReplaceAll(p.Title, "|", "/")
	fmt.Fprintf(b, "| %s | %s | %s | %.2f | %d | %.1f | %d |\n",
		label, p.ASIN, title, p.Price, p.BSR, p.Rating, p.ReviewCount)
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
