package symex

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Coverage records the control flow transitions taken during symbolic
// execution. Only transitions of reachable states are recorded.
type Coverage struct {
	m map[coverageKey]*CoverageEntry
}

type coverageKey struct {
	fn       string
	from, to int
}

// CoverageEntry summarizes one transition between two instructions.
type CoverageEntry struct {
	Function string
	From     int
	To       int
	Count    int
	Duration time.Duration
}

// NewCoverage returns a new, empty coverage record.
func NewCoverage() *Coverage {
	return &Coverage{m: make(map[coverageKey]*CoverageEntry)}
}

// Record adds one execution of the transition from -> to in fn. The duration
// is the time spent executing the instruction at from.
func (c *Coverage) Record(fn string, from, to int, d time.Duration) {
	key := coverageKey{fn, from, to}
	entry := c.m[key]
	if entry == nil {
		entry = &CoverageEntry{Function: fn, From: from, To: to}
		c.m[key] = entry
	}
	entry.Count++
	entry.Duration += d
}

// Count returns the number of times the transition was taken.
func (c *Coverage) Count(fn string, from, to int) int {
	if entry := c.m[coverageKey{fn, from, to}]; entry != nil {
		return entry.Count
	}
	return 0
}

// Executed returns the number of times the instruction at pc was left.
func (c *Coverage) Executed(fn string, pc int) int {
	var n int
	for key, entry := range c.m {
		if key.fn == fn && key.from == pc {
			n += entry.Count
		}
	}
	return n
}

// Total returns the number of recorded transitions.
func (c *Coverage) Total() int {
	var n int
	for _, entry := range c.m {
		n += entry.Count
	}
	return n
}

// Entries returns all transitions ordered by function and location.
func (c *Coverage) Entries() []*CoverageEntry {
	a := make([]*CoverageEntry, 0, len(c.m))
	for _, entry := range c.m {
		a = append(a, entry)
	}
	sort.Slice(a, func(i, j int) bool {
		if a[i].Function != a[j].Function {
			return a[i].Function < a[j].Function
		} else if a[i].From != a[j].From {
			return a[i].From < a[j].From
		}
		return a[i].To < a[j].To
	})
	return a
}

// WriteTo writes a table of all transitions to w.
func (c *Coverage) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	table := tablewriter.NewWriter(cw)
	table.SetHeader([]string{"Function", "From", "To", "Count", "Duration"})
	for _, entry := range c.Entries() {
		table.Append([]string{
			entry.Function,
			strconv.Itoa(entry.From),
			strconv.Itoa(entry.To),
			strconv.Itoa(entry.Count),
			entry.Duration.String(),
		})
	}
	table.SetFooter([]string{"", "", "Total", strconv.Itoa(c.Total()), ""})
	table.Render()
	return cw.n, cw.err
}

// countingWriter tracks bytes written for the io.WriterTo contract.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (w *countingWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err != nil {
		w.err = fmt.Errorf("write coverage: %w", err)
	}
	return n, err
}
