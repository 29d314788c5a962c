package display

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/dropwatch/listing"
	"github.com/teranos/dropwatch/pipeline"
	"github.com/teranos/dropwatch/sym"
)

// RenderHistory writes past runs as a table, newest first
func RenderHistory(w io.Writer, runs []pipeline.Outcome) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded yet")
		return err
	}
	data := pterm.TableData{{"", "Started", "Kind", "Stage", "Reason", "Exit", "Duration", "Target"}}
	for _, r := range runs {
		stage := r.Stage.String()
		if r.Stage == pipeline.StageFailed {
			stage += "(" + r.FailedStage.String() + ")"
		}
		data = append(data, []string{
			sym.ForStage(r.Stage.String()),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.TargetKind,
			stage,
			string(r.Reason),
			strconv.Itoa(r.ExitCode()),
			r.Duration().Round(time.Millisecond).String(),
			truncate(r.Target, 60),
		})
	}
	return renderTable(w, data)
}

// RenderItems writes listing items as a table
func RenderItems(w io.Writer, items []listing.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No matching items")
		return err
	}
	data := pterm.TableData{{"ID", "Title", "URL"}}
	for _, it := range items {
		data = append(data, []string{it.ID, truncate(it.Title, 50), it.URL})
	}
	return renderTable(w, data)
}

func renderTable(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
