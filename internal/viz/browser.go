package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/blocksim/internal/storage"
)

const (
	minChartHeight = 4
	maxChartHeight = 40
)

// Browser steps through the variables of a run, one chart at a time.
type Browser struct {
	title         string
	times         []float64
	series        []storage.Series
	cursor        int
	theme         int
	chartHeight   int
	width, height int
}

func NewBrowser(title string, times []float64, series []storage.Series) Browser {
	return Browser{
		title:       title,
		times:       times,
		series:      series,
		chartHeight: 12,
		width:       80,
		height:      24,
	}
}

// Selected returns the index of the highlighted variable.
func (b Browser) Selected() int { return b.cursor }

func (b Browser) Theme() Theme { return Themes[b.theme] }

func (b Browser) Init() tea.Cmd { return nil }

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return b, tea.Quit
		case "up", "k":
			if b.cursor > 0 {
				b.cursor--
			}
		case "down", "j":
			if b.cursor < len(b.series)-1 {
				b.cursor++
			}
		case "+", "=":
			b.chartHeight = min(b.chartHeight+2, maxChartHeight)
		case "-":
			b.chartHeight = max(b.chartHeight-2, minChartHeight)
		case "t":
			b.theme = (b.theme + 1) % len(Themes)
		}
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
	}
	return b, nil
}

func (b Browser) View() string {
	theme := b.Theme()
	var sb strings.Builder
	sb.WriteString(theme.title().Render(b.title))
	sb.WriteString("\n\n")

	if len(b.series) == 0 {
		sb.WriteString(theme.muted().Render("no variables recorded"))
		sb.WriteString("\n")
		return sb.String()
	}

	nameWidth := 0
	for _, s := range b.series {
		nameWidth = max(nameWidth, len(s.Name))
	}
	sparkWidth := max(b.width-nameWidth-8, 10)
	for i, s := range b.series {
		line := fmt.Sprintf("%-*s  %s", nameWidth, s.Name, Sparkline(s.Values, sparkWidth))
		if i == b.cursor {
			sb.WriteString(theme.selected().Render("> " + line))
		} else {
			sb.WriteString("  " + theme.muted().Render(line))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	s := b.series[b.cursor]
	caption := s.Name
	if n := len(b.times); n > 0 {
		caption = fmt.Sprintf("%s over [%g, %g] s", s.Name, b.times[0], b.times[n-1])
	}
	sb.WriteString(Chart(caption, s.Values, max(b.width-10, 20), b.chartHeight))
	sb.WriteString("\n\n")
	sb.WriteString(KeyHint.Render(fmt.Sprintf("j/k select  +/- height  t theme (%s)  q quit", theme.Name)))
	sb.WriteString("\n")
	return sb.String()
}
