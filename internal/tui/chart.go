package tui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// maxBars caps how many rows of data.values are drawn.
const maxBars = 24

type bar struct {
	label string
	value float64
}

// SpecChart renders an extracted chart spec. Specs carrying inline
// data.values with a categorical and a quantitative encoding channel are
// drawn as a bar chart; anything else falls back to the spec's JSON.
type SpecChart struct {
	spec model.Spec
	bars []bar
}

func NewSpecChart() *SpecChart {
	return &SpecChart{}
}

// SetSpec replaces the rendered spec.
func (c *SpecChart) SetSpec(spec model.Spec) {
	c.spec = spec
	c.bars = specBars(spec)
}

func (c *SpecChart) Spec() model.Spec { return c.spec }

// Render draws the chart panel at the given outer size.
func (c *SpecChart) Render(width, height int, active bool) string {
	style := sectionStyle.Width(max(width-2, 1)).Height(max(height-2, 1))
	if active {
		style = activeSectionStyle.Width(max(width-2, 1)).Height(max(height-2, 1))
	}

	innerWidth := max(width-4, 10)
	innerHeight := max(height-3, 3)

	if c.spec == nil {
		title := chartTitleStyle.Render("Chart")
		return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, helpStyle.Render("No chart yet")))
	}

	title := chartTitleStyle.Render(c.title())
	var content string
	if len(c.bars) > 0 {
		content = renderBars(c.bars, innerWidth, innerHeight)
	} else {
		content = renderSpecJSON(c.spec, innerWidth, innerHeight)
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (c *SpecChart) title() string {
	parts := []string{"Chart"}
	if mark := markType(c.spec); mark != "" {
		parts = append(parts, mark)
	}
	if t, ok := c.spec["title"].(string); ok && t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " · ")
}

func renderBars(bars []bar, width, height int) string {
	n := min(len(bars), maxBars)
	gap := 1
	barWidth := max((width-gap*(n-1))/n, 1)
	barWidth = min(barWidth, 8)

	bc := barchart.New(width, height,
		barchart.WithBarGap(gap),
		barchart.WithBarWidth(barWidth),
	)
	for _, b := range bars[:n] {
		bc.Push(barchart.BarData{
			Label: truncate(b.label, barWidth),
			Values: []barchart.BarValue{
				{Name: b.label, Value: b.value, Style: barStyle},
			},
		})
	}
	bc.Draw()
	return bc.View()
}

func renderSpecJSON(spec model.Spec, width, height int) string {
	b, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return helpStyle.Render("unrenderable spec")
	}
	lines := strings.Split(string(b), "\n")
	if len(lines) > height {
		lines = append(lines[:height-1], "…")
	}
	for i, l := range lines {
		lines[i] = truncate(l, width)
	}
	return strings.Join(lines, "\n")
}

func markType(spec model.Spec) string {
	switch m := spec["mark"].(type) {
	case string:
		return m
	case map[string]any:
		if t, ok := m["type"].(string); ok {
			return t
		}
	}
	return ""
}

// specBars pairs a label channel with a numeric channel. The y channel is
// the value unless only x is numeric (a horizontal bar chart).
func specBars(spec model.Spec) []bar {
	if spec == nil {
		return nil
	}
	rows := inlineRows(spec)
	if len(rows) == 0 {
		return nil
	}
	enc, _ := spec["encoding"].(map[string]any)
	xField := channelField(enc, "x")
	yField := channelField(enc, "y")
	if xField == "" || yField == "" {
		return nil
	}

	labelField, valueField := xField, yField
	if !numericColumn(rows, yField) {
		if !numericColumn(rows, xField) {
			return nil
		}
		labelField, valueField = yField, xField
	}

	var bars []bar
	for _, r := range rows {
		v, ok := toFloat(r[valueField])
		if !ok {
			continue
		}
		bars = append(bars, bar{label: fmt.Sprint(r[labelField]), value: v})
	}
	return bars
}

func inlineRows(spec model.Spec) []map[string]any {
	data, _ := spec["data"].(map[string]any)
	values, _ := data["values"].([]any)
	var rows []map[string]any
	for _, v := range values {
		if row, ok := v.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func channelField(enc map[string]any, channel string) string {
	ch, _ := enc[channel].(map[string]any)
	field, _ := ch["field"].(string)
	return field
}

func numericColumn(rows []map[string]any, field string) bool {
	for _, r := range rows {
		if _, ok := toFloat(r[field]); ok {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return string(r[:1])
	}
	return string(r[:width-1]) + "…"
}
