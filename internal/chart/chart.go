// Package chart renders static PNG charts from stored observations,
// aggregated to one point per local day.
package chart

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/climareal/clima-service/internal/models"
)

// Metric selects which chart to render.
type Metric string

const (
	MetricTemp     Metric = "temp"
	MetricFeels    Metric = "feels"
	MetricHumidity Metric = "humidity"
)

var ErrNoData = errors.New("no observations to plot")

// ParseMetric maps a request path segment to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricTemp, MetricFeels, MetricHumidity:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown chart metric %q", s)
}

// Render writes a PNG line chart of the daily means for the given metric.
// Days are bucketed in the observations' own zone (tz column; records for one
// city share it), matching how readers of the chart experience time.
func Render(w io.Writer, metric Metric, obs []models.Observation, cityTag string) error {
	if len(obs) == 0 {
		return ErrNoData
	}

	loc := localZone(obs)

	switch metric {
	case MetricTemp:
		days, temps := dailyMean(obs, loc, func(o models.Observation) *float64 { return o.TempC })
		return renderLines(w, fmt.Sprintf("Temperatura — %s (média diária)", cityTag), "°C",
			[]series{{name: "Temperatura (°C)", days: days, values: temps}})
	case MetricFeels:
		days, temps := dailyMean(obs, loc, func(o models.Observation) *float64 { return o.TempC })
		fdays, feels := dailyMean(obs, loc, func(o models.Observation) *float64 { return o.FeelsLikeC })
		return renderLines(w, fmt.Sprintf("Temp vs Sensação — %s (média diária)", cityTag), "°C",
			[]series{
				{name: "Temp (°C)", days: days, values: temps},
				{name: "Sensação (°C)", days: fdays, values: feels},
			})
	case MetricHumidity:
		days, hums := dailyMean(obs, loc, func(o models.Observation) *float64 {
			if o.Humidity == nil {
				return nil
			}
			v := float64(*o.Humidity)
			return &v
		})
		return renderLines(w, fmt.Sprintf("Umidade — %s (média diária)", cityTag), "%",
			[]series{{name: "Umidade (%)", days: days, values: hums}})
	}
	return fmt.Errorf("unknown chart metric %q", metric)
}

type series struct {
	name   string
	days   []time.Time
	values []float64
}

func renderLines(w io.Writer, title, yLabel string, lines []series) error {
	var chartSeries []chart.Series
	for _, s := range lines {
		if len(s.days) == 0 {
			continue
		}
		chartSeries = append(chartSeries, chart.TimeSeries{
			Name:    s.name,
			XValues: s.days,
			YValues: s.values,
			Style: chart.Style{
				StrokeWidth: 2,
				DotWidth:    4,
			},
		})
	}
	if len(chartSeries) == 0 {
		return ErrNoData
	}

	graph := chart.Chart{
		Title: title,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02/01"),
		},
		YAxis: chart.YAxis{
			Name: yLabel,
		},
		Series: chartSeries,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// localZone resolves the IANA zone shared by the rows; falls back to UTC when
// the name is missing or unknown.
func localZone(obs []models.Observation) *time.Location {
	for _, o := range obs {
		if o.Tz == "" {
			continue
		}
		if loc, err := time.LoadLocation(o.Tz); err == nil {
			return loc
		}
	}
	return time.UTC
}

// dailyMean buckets observations by local calendar day and averages the
// picked field, skipping rows where it is null. Returned days are sorted
// ascending, anchored at local midnight.
func dailyMean(obs []models.Observation, loc *time.Location, pick func(models.Observation) *float64) ([]time.Time, []float64) {
	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[time.Time]*bucket)

	for _, o := range obs {
		v := pick(o)
		if v == nil {
			continue
		}
		local := time.Unix(o.TsUTC, 0).In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		b := buckets[day]
		if b == nil {
			b = &bucket{}
			buckets[day] = b
		}
		b.sum += *v
		b.count++
	}

	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	values := make([]float64, len(days))
	for i, day := range days {
		b := buckets[day]
		values[i] = b.sum / float64(b.count)
	}
	return days, values
}
