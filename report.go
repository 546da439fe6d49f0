package keel

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func FprintHealthTable(w io.Writer, reports []HealthReport) {
	t := newTable(w)
	t.AppendHeader(table.Row{"SERVICE", "STATUS", "LATENCY", "ERROR"})

	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
		t.AppendRow(table.Row{r.Name, colorHealth(r.Status), r.Latency.String(), errString(r.Error)})
	}

	t.AppendFooter(table.Row{"", "", "failed", failed})
	t.Render()
}

func colorHealth(s HealthStatus) string {
	switch s {
	case HealthStatusHealthy:
		return text.FgGreen.Sprint(string(s))
	case HealthStatusUnhealthy:
		return text.FgRed.Sprint(string(s))
	case HealthStatusTimedOut:
		return text.FgYellow.Sprint(string(s))
	default:
		return string(s)
	}
}

// Fprint renders the report as a table in visit order.
func (r *ShutdownReport) Fprint(w io.Writer) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "SERVICE", "RESULT"})

	for i, key := range r.Order {
		result := text.FgGreen.Sprint("ok")
		if err := r.Errors[key]; err != nil {
			result = text.FgRed.Sprint(err.Error())
		}
		t.AppendRow(table.Row{i + 1, key, result})
	}

	t.AppendFooter(table.Row{"", "took", r.Duration.String()})
	t.Render()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
