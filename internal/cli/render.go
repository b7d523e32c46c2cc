package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"schedsync/internal/app"
	"schedsync/internal/reconcile"
	"schedsync/internal/schedule"
)

type outcomeJSON struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	Action  string `json:"action"`
	Deleted bool   `json:"deleted,omitempty"`
	Error   string `json:"error,omitempty"`
	TookMS  int64  `json:"took_ms"`
}

type reportJSON struct {
	RunID    string            `json:"run_id"`
	Summary  reconcile.Summary `json:"summary"`
	Outcomes []outcomeJSON     `json:"outcomes"`
}

type plannedJSON struct {
	ID       string      `json:"id"`
	State    string      `json:"state"`
	Present  bool        `json:"present"`
	Action   string      `json:"action"`
	NextRuns []time.Time `json:"next_runs,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type definitionJSON struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Workflow  string `json:"workflow,omitempty"`
	TaskQueue string `json:"task_queue,omitempty"`
	Interval  string `json:"interval,omitempty"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderOutcomes(w io.Writer, format string, rep app.Report) error {
	if format == "json" {
		out := reportJSON{RunID: rep.RunID, Summary: rep.Summary, Outcomes: make([]outcomeJSON, 0, len(rep.Outcomes))}
		for _, o := range rep.Outcomes {
			out.Outcomes = append(out.Outcomes, outcomeJSON{
				ID:      o.ID,
				State:   o.State.String(),
				Action:  o.Action.String(),
				Deleted: o.Deleted,
				Error:   errString(o.Err),
				TookMS:  o.Took.Milliseconds(),
			})
		}
		return writeJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tACTION\tRESULT")
	for _, o := range rep.Outcomes {
		result := "ok"
		if o.Err != nil {
			result = o.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.ID, o.State, o.Action, result)
	}
	s := rep.Summary
	fmt.Fprintf(tw, "\ncreated=%d updated=%d paused=%d deleted=%d absent=%d failed=%d\n",
		s.Created, s.Updated, s.Paused, s.Deleted, s.Absent, s.Failed)
	return tw.Flush()
}

func renderPlan(w io.Writer, format string, plan []reconcile.Planned) error {
	if format == "json" {
		out := make([]plannedJSON, 0, len(plan))
		for _, p := range plan {
			out = append(out, plannedJSON{
				ID:       p.ID,
				State:    p.State.String(),
				Present:  p.Present,
				Action:   p.Action.String(),
				NextRuns: p.NextRuns,
				Error:    errString(p.Err),
			})
		}
		return writeJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tPRESENT\tACTION\tNEXT RUN")
	for _, p := range plan {
		next := "-"
		if len(p.NextRuns) > 0 {
			next = p.NextRuns[0].UTC().Format(time.RFC3339)
		}
		action := p.Action.String()
		if p.Err != nil {
			action = "error: " + p.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", p.ID, p.State, p.Present, action, next)
	}
	return tw.Flush()
}

func renderDefinitions(w io.Writer, format string, defs map[string]schedule.Definition) error {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]definitionJSON, 0, len(ids))
	for _, id := range ids {
		d := defs[id]
		row := definitionJSON{ID: id, State: d.Spec.State.String()}
		if d.Spec.State.Exists() {
			row.Workflow = d.Spec.WorkflowRef
			row.TaskQueue = d.Spec.TaskQueue
			row.Interval = d.Spec.Interval.String()
		}
		rows = append(rows, row)
	}
	if format == "json" {
		return writeJSON(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tWORKFLOW\tTASK QUEUE\tINTERVAL")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.State, dash(r.Workflow), dash(r.TaskQueue), dash(r.Interval))
	}
	fmt.Fprintf(tw, "\n%d schedules OK\n", len(rows))
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
