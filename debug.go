package keel

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/danpasecinic/keel/internal/container"
	"github.com/danpasecinic/keel/internal/reflect"
	"github.com/danpasecinic/keel/internal/state"
)

// GraphSnapshot is a point-in-time view of the container: every registered
// service in registration order and every recorded edge.
type GraphSnapshot struct {
	Container string        `yaml:"container"`
	Services  []ServiceInfo `yaml:"services"`
	Edges     []EdgeInfo    `yaml:"edges,omitempty"`
}

type ServiceInfo struct {
	Key           string    `yaml:"key"`
	State         string    `yaml:"state"`
	Value         bool      `yaml:"value,omitempty"`
	ConstructedAt time.Time `yaml:"constructed_at,omitempty"`
	Dependencies  []string  `yaml:"dependencies,omitempty"`
	Dependents    []string  `yaml:"dependents,omitempty"`
}

// Instantiated reports whether the service has been constructed, including
// services already torn down.
func (s ServiceInfo) Instantiated() bool {
	return !s.ConstructedAt.IsZero()
}

type EdgeInfo struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

func newServiceInfo(s container.ServiceSnapshot) ServiceInfo {
	return ServiceInfo{
		Key:           s.Key,
		State:         s.State.String(),
		Value:         s.Value,
		ConstructedAt: s.ConstructedAt,
		Dependencies:  s.Dependencies,
		Dependents:    s.Dependents,
	}
}

func (c *Container) Describe() GraphSnapshot {
	services, edges := c.internal.Snapshot()

	snapshot := GraphSnapshot{
		Container: c.Name(),
		Services:  make([]ServiceInfo, 0, len(services)),
		Edges:     make([]EdgeInfo, 0, len(edges)),
	}
	for _, s := range services {
		snapshot.Services = append(snapshot.Services, newServiceInfo(s))
	}
	for _, e := range edges {
		snapshot.Edges = append(snapshot.Edges, EdgeInfo{From: e.From, To: e.To})
	}

	return snapshot
}

func (s GraphSnapshot) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

type Explanation struct {
	ServiceInfo `yaml:",inline"`

	// ResolutionOrder lists the service and everything it transitively
	// depends on, dependencies first.
	ResolutionOrder []string `yaml:"resolution_order"`
}

// Explain describes one service and where it sits in the graph.
func Explain[T any](c *Container) (Explanation, error) {
	return c.Explain(reflect.TypeKey[T]())
}

func ExplainNamed[T any](c *Container, name string) (Explanation, error) {
	return c.Explain(reflect.TypeKeyNamed[T](name))
}

func (c *Container) Explain(key string) (Explanation, error) {
	services, _ := c.internal.Snapshot()
	for _, s := range services {
		if s.Key != key {
			continue
		}
		return Explanation{
			ServiceInfo:     newServiceInfo(s),
			ResolutionOrder: c.internal.Graph().ResolutionOrder(key),
		}, nil
	}

	return Explanation{}, translate(&container.ServiceError{Kind: container.ErrNotFound, Key: key})
}

func (c *Container) PrintGraph() {
	c.FprintGraph(os.Stdout)
}

func (c *Container) FprintGraph(w io.Writer) {
	info := c.Describe()

	if len(info.Services) == 0 {
		_, _ = fmt.Fprintln(w, "(empty container)")
		return
	}

	for _, svc := range info.Services {
		status := "○"
		if svc.State == state.Ready.String() {
			status = "●"
		}

		if len(svc.Dependencies) == 0 {
			_, _ = fmt.Fprintf(w, "%s %s\n", status, svc.Key)
		} else {
			_, _ = fmt.Fprintf(w, "%s %s ← %s\n", status, svc.Key, strings.Join(svc.Dependencies, ", "))
		}
	}
}

func (c *Container) SprintGraph() string {
	var sb strings.Builder
	c.FprintGraph(&sb)
	return sb.String()
}

func (c *Container) PrintGraphDOT() {
	c.FprintGraphDOT(os.Stdout)
}

func (c *Container) FprintGraphDOT(w io.Writer) {
	info := c.Describe()

	_, _ = fmt.Fprintln(w, "digraph dependencies {")
	_, _ = fmt.Fprintln(w, "  rankdir=LR;")
	_, _ = fmt.Fprintln(w, "  node [shape=box];")

	for _, svc := range info.Services {
		label := escapeLabel(svc.Key)
		style := ""
		if svc.State == state.Ready.String() {
			style = ", style=filled, fillcolor=lightblue"
		}
		_, _ = fmt.Fprintf(w, "  %s [label=%s%s];\n", dotQuote(svc.Key), dotQuote(label), style)
	}

	_, _ = fmt.Fprintln(w)

	for _, e := range info.Edges {
		_, _ = fmt.Fprintf(w, "  %s -> %s;\n", dotQuote(e.From), dotQuote(e.To))
	}

	_, _ = fmt.Fprintln(w, "}")
}

func (c *Container) SprintGraphDOT() string {
	var sb strings.Builder
	c.FprintGraphDOT(&sb)
	return sb.String()
}

// FprintGraphTable renders the snapshot as a table, one row per service.
func (c *Container) FprintGraphTable(w io.Writer) {
	info := c.Describe()

	t := newTable(w)
	t.AppendHeader(table.Row{"SERVICE", "STATE", "DEPENDS ON", "CONSTRUCTED"})

	for _, svc := range info.Services {
		constructed := "-"
		if svc.Instantiated() {
			constructed = humanize.Time(svc.ConstructedAt)
		}
		t.AppendRow(table.Row{
			svc.Key,
			colorState(svc.State),
			strings.Join(svc.Dependencies, "\n"),
			constructed,
		})
	}

	t.AppendFooter(table.Row{"", "", "services", len(info.Services)})
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func colorState(s string) string {
	switch s {
	case state.Ready.String():
		return text.FgGreen.Sprint(s)
	case state.ShuttingDown.String(), state.Constructing.String():
		return text.FgYellow.Sprint(s)
	case state.Shutdown.String():
		return text.FgHiBlack.Sprint(s)
	default:
		return s
	}
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// dotQuote renders s as a DOT quoted ID. DOT knows no escapes besides \" and
// \\, so every other byte goes through as is.
func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "*", "")
	if idx := strings.LastIndex(s, "/"); idx != -1 {
		s = s[idx+1:]
	}
	return s
}
