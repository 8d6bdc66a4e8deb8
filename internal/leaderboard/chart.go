package leaderboard

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/sakif/rankboard/internal/model"
)

const (
	chartWidth  = 800
	chartHeight = 400
	// maxBars keeps labels readable; the rest of the field is cut off.
	maxBars = 20
)

var (
	barColor     = drawing.ColorFromHex("2563eb")
	leaderColor  = drawing.ColorFromHex("f59e0b")
	textColor    = drawing.ColorFromHex("1f2937")
	canvasColor  = drawing.ColorWhite
	noEntryLabel = "no participants"
)

// RenderPNG draws the top entries as a bar chart of total scores. An empty
// leaderboard renders a single zero bar so the endpoint always returns an
// image.
func RenderPNG(w io.Writer, title string, entries []model.LeaderboardEntry) error {
	if len(entries) > maxBars {
		entries = entries[:maxBars]
	}

	bars := make([]chart.Value, 0, len(entries))
	maxTotal := 0
	for i, e := range entries {
		style := chart.Style{FillColor: barColor, StrokeColor: barColor}
		if i == 0 && e.TotalScore > 0 {
			style = chart.Style{FillColor: leaderColor, StrokeColor: leaderColor}
		}
		bars = append(bars, chart.Value{
			Label: e.Username,
			Value: float64(e.TotalScore),
			Style: style,
		})
		maxTotal = max(maxTotal, e.TotalScore)
	}
	if len(bars) == 0 {
		bars = append(bars, chart.Value{Label: noEntryLabel, Value: 0})
	}

	graph := chart.BarChart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: textColor},
		Width:      chartWidth,
		Height:     chartHeight,
		BarWidth:   max(10, (chartWidth-100)/len(bars)/2),
		Background: chart.Style{
			FillColor: canvasColor,
			Padding:   chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		Canvas: chart.Style{FillColor: canvasColor},
		XAxis:  chart.Style{FontColor: textColor},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: textColor},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(max(maxTotal, 1))},
		},
		Bars: bars,
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("leaderboard: rendering chart: %w", err)
	}
	return nil
}
