package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RunStats is the display payload for the stats view.
type RunStats struct {
	RunID            string
	Tiles            int
	RawBytes         int64
	EncodedBytes     int64
	CompressionRatio float64
	MeanSSIM         float64
	MeanDistance     float64
}

// RenderRunStats renders a static stat-box summary of a completed run.
func RenderRunStats(s RunStats) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Run %s", s.RunID)))
	b.WriteString("\n\n")

	boxes := []string{
		renderStatBox("Tiles", fmt.Sprintf("%d", s.Tiles), highlightColor),
		renderStatBox("Ratio", fmt.Sprintf("%.2fx", s.CompressionRatio), successColor),
		renderStatBox("Mean SSIM", fmt.Sprintf("%.4f", s.MeanSSIM), primaryColor),
		renderStatBox("Mean Dist", fmt.Sprintf("%.2f", s.MeanDistance), warningColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("raw:"), ValueStyle.Render(formatBytes(s.RawBytes))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("encoded:"), ValueStyle.Render(formatBytes(s.EncodedBytes))))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
