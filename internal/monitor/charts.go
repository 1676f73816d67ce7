package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/banshee-data/wayfinder/internal/guidance"
	"github.com/banshee-data/wayfinder/internal/httputil"
	"github.com/banshee-data/wayfinder/internal/perception"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleObstacleChart renders the latest obstacles top-down (x right, z
// forward) alongside a bar chart of the path option scores.
func (ws *WebServer) handleObstacleChart(w http.ResponseWriter, r *http.Request) {
	res := ws.detector.Result()

	page := components.NewPage()
	page.AddCharts(obstacleScatter(res.Obstacles, res.Timestamp), scoreBar(res.Evaluation))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

var typeColors = map[perception.Type]string{
	perception.TypeWall:      "#d62728",
	perception.TypeFurniture: "#ff7f0e",
	perception.TypePerson:    "#2ca02c",
	perception.TypeObject:    "#1f77b4",
	perception.TypeUnknown:   "#7f7f7f",
}

func obstacleScatter(obstacles []perception.Obstacle, at time.Time) *charts.Scatter {
	maxAbs := 1.0
	for _, o := range obstacles {
		maxAbs = max(maxAbs, math.Abs(o.Position.X), math.Abs(o.Position.Z))
	}
	pad := maxAbs * 1.05

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "720px", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Obstacles", Subtitle: fmt.Sprintf("n=%d at %s", len(obstacles), at.Format(time.RFC3339))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: pad, Name: "Forward (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	byType := make(map[perception.Type][]opts.ScatterData)
	for _, o := range obstacles {
		byType[o.Type] = append(byType[o.Type], opts.ScatterData{
			Name:       fmt.Sprintf("%s %s", o.Size, o.Type),
			Value:      []interface{}{o.Position.X, o.Position.Z, o.Confidence},
			SymbolSize: 6 + int(o.Confidence*10),
		})
	}
	for _, t := range []perception.Type{perception.TypeWall, perception.TypeFurniture, perception.TypePerson, perception.TypeObject, perception.TypeUnknown} {
		data, ok := byType[t]
		if !ok {
			continue
		}
		scatter.AddSeries(string(t), data, charts.WithItemStyleOpts(opts.ItemStyle{Color: typeColors[t]}))
	}
	return scatter
}

func scoreBar(ev *guidance.Evaluation) *charts.Bar {
	bar := charts.NewBar()
	subtitle := "no recommendation"
	if ev != nil {
		subtitle = guidance.DescribeDirection(ev.Direction)
	}
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "720px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Path scores", Subtitle: subtitle}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100}),
	)

	x := []string{"left", "forward", "right"}
	y := make([]opts.BarData, len(x))
	if ev != nil {
		for i, opt := range ev.Options {
			y[i] = opts.BarData{Name: x[i], Value: opt.Score}
		}
	}
	bar.SetXAxis(x).AddSeries("score", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}
