// Command run executes the comparison benchmarks and renders one table per
// scenario, fastest framework first.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type BenchmarkResult struct {
	Name       string  `json:"name"`
	Framework  string  `json:"framework"`
	Category   string  `json:"category"`
	Scenario   string  `json:"scenario"`
	Iterations int64   `json:"iterations"`
	NsPerOp    float64 `json:"ns_per_op"`
	BytesPerOp int64   `json:"bytes_per_op"`
	AllocsOp   int64   `json:"allocs_per_op"`
}

type CategoryResults struct {
	Category string
	Results  []BenchmarkResult
}

var frameworkColors = map[string]text.Colors{
	"Keel":                 {text.FgGreen},
	"KeelParallelShutdown": {text.FgCyan},
	"Do":                   {text.FgYellow},
	"Dig":                  {text.FgMagenta},
	"Fx":                   {text.FgBlue},
}

var categoryOrder = []string{
	"Provide_Simple", "Provide_Chain",
	"Invoke_Singleton", "Invoke_Chain",
	"Named_10",
	"Lifecycle_10", "Lifecycle_50",
	"LifecycleWithWork_10", "LifecycleWithWork_50",
}

var titles = map[string]string{
	"Provide_Simple":       "Provider registration (simple)",
	"Provide_Chain":        "Provider registration (dependency chain)",
	"Invoke_Singleton":     "Resolution (singleton)",
	"Invoke_Chain":         "Resolution (dependency chain)",
	"Named_10":             "Named services (10)",
	"Lifecycle_10":         "Start and stop (10 services)",
	"Lifecycle_50":         "Start and stop (50 services)",
	"LifecycleWithWork_10": "Start and stop with 1ms hooks (10 services)",
	"LifecycleWithWork_50": "Start and stop with 1ms hooks (50 services)",
}

var (
	benchPattern = regexp.MustCompile(`^Benchmark(\S+?)-\d+\s+(\d+)\s+([\d.]+) ns/op\s+(\d+) B/op\s+(\d+) allocs/op`)
	namePattern  = regexp.MustCompile(`^(\w+)/(\w+)/(\w+)$`)
)

func main() {
	benchDir := ".."
	jsonOut := false
	for _, arg := range os.Args[1:] {
		if arg == "--json" {
			jsonOut = true
			continue
		}
		benchDir = arg
	}

	fmt.Println(text.Bold.Sprint("Keel DI benchmark suite"))
	fmt.Println(text.Faint.Sprint("running benchmarks..."))
	fmt.Println()

	cmd := exec.Command("go", "test", "-bench=.", "-benchmem", "-count=3", "-benchtime=100ms")
	cmd.Dir = benchDir
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "benchmark failed: %s\n", exitErr.Stderr)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	results := parseResults(output)
	grouped := groupByCategory(results)
	for _, cat := range grouped {
		printCategory(cat)
	}
	printSummary(grouped)

	if jsonOut {
		if err := exportJSON(results); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

// parseResults averages the repeated runs of every benchmark.
func parseResults(output []byte) []BenchmarkResult {
	seen := make(map[string][]BenchmarkResult)
	var names []string

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		m := benchPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		r := BenchmarkResult{Name: m[1]}
		r.Iterations, _ = strconv.ParseInt(m[2], 10, 64)
		r.NsPerOp, _ = strconv.ParseFloat(m[3], 64)
		r.BytesPerOp, _ = strconv.ParseInt(m[4], 10, 64)
		r.AllocsOp, _ = strconv.ParseInt(m[5], 10, 64)

		if parts := namePattern.FindStringSubmatch(r.Name); parts != nil {
			r.Category, r.Scenario, r.Framework = parts[1], parts[2], parts[3]
		} else {
			r.Category, r.Framework = r.Name, r.Name
		}

		if _, ok := seen[r.Name]; !ok {
			names = append(names, r.Name)
		}
		seen[r.Name] = append(seen[r.Name], r)
	}

	results := make([]BenchmarkResult, 0, len(names))
	for _, name := range names {
		runs := seen[name]
		avg := runs[0]
		var ns float64
		var bytesOp, allocs int64
		for _, r := range runs {
			ns += r.NsPerOp
			bytesOp += r.BytesPerOp
			allocs += r.AllocsOp
		}
		n := int64(len(runs))
		avg.NsPerOp = ns / float64(n)
		avg.BytesPerOp = bytesOp / n
		avg.AllocsOp = allocs / n
		results = append(results, avg)
	}
	return results
}

func groupByCategory(results []BenchmarkResult) []CategoryResults {
	groups := make(map[string][]BenchmarkResult)
	for _, r := range results {
		key := r.Category + "_" + r.Scenario
		groups[key] = append(groups[key], r)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, oj := slices.Index(categoryOrder, keys[i]), slices.Index(categoryOrder, keys[j])
		switch {
		case oi >= 0 && oj >= 0:
			return oi < oj
		case oi >= 0 || oj >= 0:
			return oi >= 0
		default:
			return keys[i] < keys[j]
		}
	})

	ordered := make([]CategoryResults, 0, len(keys))
	for _, key := range keys {
		rs := groups[key]
		sort.Slice(rs, func(i, j int) bool { return rs[i].NsPerOp < rs[j].NsPerOp })
		ordered = append(ordered, CategoryResults{Category: key, Results: rs})
	}
	return ordered
}

func printCategory(cat CategoryResults) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(categoryTitle(cat.Category))
	t.AppendHeader(table.Row{"framework", "time/op", "", "B/op", "allocs/op"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	fastest := cat.Results[0].NsPerOp
	for i, r := range cat.Results {
		relative := "fastest"
		if i > 0 && fastest > 0 {
			relative = fmt.Sprintf("%.1fx slower", r.NsPerOp/fastest)
		}
		t.AppendRow(table.Row{
			colorize(r.Framework),
			formatNs(r.NsPerOp),
			text.Faint.Sprint(relative),
			r.BytesPerOp,
			r.AllocsOp,
		})
	}

	t.Render()
	fmt.Println()
}

func printSummary(groups []CategoryResults) {
	wins := make(map[string]int)
	for _, cat := range groups {
		wins[cat.Results[0].Framework]++
	}

	frameworks := make([]string, 0, len(wins))
	for name := range wins {
		frameworks = append(frameworks, name)
	}
	sort.Slice(frameworks, func(i, j int) bool {
		if wins[frameworks[i]] != wins[frameworks[j]] {
			return wins[frameworks[i]] > wins[frameworks[j]]
		}
		return frameworks[i] < frameworks[j]
	})

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Summary")
	t.AppendHeader(table.Row{"framework", "fastest in"})
	for _, name := range frameworks {
		t.AppendRow(table.Row{colorize(name), fmt.Sprintf("%d of %d", wins[name], len(groups))})
	}
	t.AppendFooter(table.Row{"", "Keel: this module, Do: samber/do, Dig: uber/dig, Fx: uber/fx"})
	t.Render()
}

func exportJSON(results []BenchmarkResult) error {
	f, err := os.Create("benchmark_results.json")
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}
	fmt.Println("results written to benchmark_results.json")
	return nil
}

func categoryTitle(cat string) string {
	if title, ok := titles[cat]; ok {
		return title
	}
	return strings.ReplaceAll(cat, "_", " ")
}

func colorize(framework string) string {
	if colors, ok := frameworkColors[framework]; ok {
		return colors.Sprint(framework)
	}
	return framework
}

func formatNs(ns float64) string {
	switch {
	case ns >= 1_000_000:
		return fmt.Sprintf("%.2f ms", ns/1_000_000)
	case ns >= 1_000:
		return fmt.Sprintf("%.2f µs", ns/1_000)
	default:
		return fmt.Sprintf("%.0f ns", ns)
	}
}
