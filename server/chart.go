package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/swdee/go-vidcount/logging"
	"github.com/swdee/go-vidcount/store"
)

// handleReportChart renders an HTML line chart of detections and tracked
// objects per sampled frame of a stored report
func (s *Server) handleReportChart(w http.ResponseWriter, r *http.Request) {

	rec, ok := s.lookupReport(w, r)

	if !ok {
		return
	}

	var buf bytes.Buffer

	if err := renderReportChart(&buf, rec); err != nil {
		s.log.Error("Failed to render chart", logging.Err(err))
		s.writeJSONError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// renderReportChart writes the chart page of a report to w
func renderReportChart(w io.Writer, rec store.Record) error {

	if rec.Report == nil {
		return fmt.Errorf("report %s has no body", rec.ID)
	}

	rep := rec.Report

	xAxis := make([]string, 0, len(rep.Results))
	detections := make([]opts.LineData, 0, len(rep.Results))
	tracked := make([]opts.LineData, 0, len(rep.Results))

	for _, res := range rep.Results {
		xAxis = append(xAxis, fmt.Sprintf("%.2f", res.TimeSec))
		detections = append(detections, opts.LineData{Value: len(res.Detections)})
		tracked = append(tracked, opts.LineData{Value: res.TrackedObjects})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Object counts", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: rec.Source, Subtitle: countsSubtitle(rep.CountsByLabel)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "objects"}),
	)

	line.SetXAxis(xAxis).
		AddSeries("detections", detections).
		AddSeries("tracked objects", tracked)

	return line.Render(w)
}

// countsSubtitle formats the unique counts as "car=3 person=1"
func countsSubtitle(counts map[string]int) string {

	labels := make([]string, 0, len(counts))

	for label := range counts {
		labels = append(labels, label)
	}

	sort.Strings(labels)

	var b bytes.Buffer

	for i, label := range labels {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", label, counts[label])
	}

	return b.String()
}
