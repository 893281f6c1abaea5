package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/sodistec/sodistec/components/camera"
	"github.com/sodistec/sodistec/ml"
	"github.com/sodistec/sodistec/services/distancing"
)

// summaryTable renders one row per camera with its totals and how it stopped.
func summaryTable(summaries []distancing.CameraSummary) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{
		"Camera", "Frames", "Warnings", "Max people", "Max serious", "Max abnormal",
		"Serious frames", "Mean ms", "P95 ms", "Max ms", "Outcome",
	})
	for _, s := range summaries {
		outcome := "running"
		switch {
		case s.StopErr != nil:
			outcome = s.StopErr.Error()
		case s.Stopped:
			outcome = "stopped"
		}
		t.AppendRow(table.Row{
			s.Camera, s.Frames, s.Warnings, s.MaxPeople, s.MaxSerious, s.MaxAbnormal,
			s.SeriousFrames,
			fmt.Sprintf("%.1f", s.MeanLatencyMS),
			fmt.Sprintf("%.1f", s.P95LatencyMS),
			fmt.Sprintf("%.1f", s.MaxLatencyMS),
			outcome,
		})
	}
	return t.Render()
}

func printSummary(w io.Writer, summaries []distancing.CameraSummary) {
	fmt.Fprintln(w, summaryTable(summaries))
}

// detectionTable renders one row per detected person.
func detectionTable(frame *distancing.AnnotatedFrame) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Score", "Box", "Centroid", "Status"})
	for i, det := range frame.Detections {
		status := "safe"
		switch {
		case frame.Classification.IsSerious(i):
			status = "serious"
		case frame.Classification.IsAbnormal(i):
			status = "abnormal"
		}
		box := det.BoundingBox()
		center := det.Centroid()
		t.AppendRow(table.Row{
			i,
			fmt.Sprintf("%.2f", det.Score()),
			fmt.Sprintf("(%d, %d)-(%d, %d)", box.Min.X, box.Min.Y, box.Max.X, box.Max.Y),
			fmt.Sprintf("(%.0f, %.0f)", center.X, center.Y),
			status,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "people", frame.People()})
	return t.Render()
}

func printDetections(w io.Writer, frame *distancing.AnnotatedFrame) {
	fmt.Fprintln(w, detectionTable(frame))
}

// BackendsAction lists the capture backends and model frameworks registered in this binary.
func BackendsAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Kind", "Name"})
	for _, name := range camera.RegisteredBackends() {
		t.AppendRow(table.Row{"camera backend", name})
	}
	for _, name := range ml.RegisteredFrameworks() {
		t.AppendRow(table.Row{"model framework", name})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}
