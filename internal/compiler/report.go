package compiler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/snc/internal/ir"
)

// TaskResult is the outcome of compiling one token.
type TaskResult struct {
	TokenID  int64          `json:"token_id"`
	Key      ir.IdentityKey `json:"key"`
	Level    int            `json:"level"`
	Outcome  ir.Outcome     `json:"outcome"`
	Artifact ir.Artifact    `json:"artifact"`
	// Err is set for errored and for invalid tasks whose validator failed to run.
	Err      error    `json:"-"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Partition lists identity keys ("kind:name") per outcome, each sorted.
type Partition struct {
	Compiled []string `json:"compiled" yaml:"compiled"`
	Cached   []string `json:"cached" yaml:"cached"`
	Invalid  []string `json:"invalid" yaml:"invalid"`
	Errored  []string `json:"errored" yaml:"errored"`
}

// Report is the result of one compilation batch. Every planned token
// appears in Results exactly once.
type Report struct {
	BatchID   string        `json:"batch_id"`
	Levels    int           `json:"levels"`
	Results   []TaskResult  `json:"results"`
	Cancelled bool          `json:"cancelled,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Partition groups results by outcome.
func (r *Report) Partition() Partition {
	p := Partition{
		Compiled: []string{},
		Cached:   []string{},
		Invalid:  []string{},
		Errored:  []string{},
	}
	if r == nil {
		return p
	}
	for _, res := range r.Results {
		k := res.Key.String()
		switch res.Outcome {
		case ir.OutcomeCompiled:
			p.Compiled = append(p.Compiled, k)
		case ir.OutcomeCached:
			p.Cached = append(p.Cached, k)
		case ir.OutcomeInvalid:
			p.Invalid = append(p.Invalid, k)
		default:
			p.Errored = append(p.Errored, k)
		}
	}
	sort.Strings(p.Compiled)
	sort.Strings(p.Cached)
	sort.Strings(p.Invalid)
	sort.Strings(p.Errored)
	return p
}

// Count returns the number of results with outcome o.
func (r *Report) Count(o ir.Outcome) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// OK reports whether every task compiled or was served from cache.
func (r *Report) OK() bool {
	return r.Count(ir.OutcomeInvalid) == 0 && r.Count(ir.OutcomeErrored) == 0
}

// Result returns the result for key.
func (r *Report) Result(key ir.IdentityKey) (TaskResult, bool) {
	if r == nil {
		return TaskResult{}, false
	}
	for _, res := range r.Results {
		if res.Key == key {
			return res, true
		}
	}
	return TaskResult{}, false
}

// Status is "ok", "failed" or "cancelled".
func (r *Report) Status() string {
	switch {
	case r != nil && r.Cancelled:
		return "cancelled"
	case r.OK():
		return "ok"
	default:
		return "failed"
	}
}

// Summary renders the partition counts on one line.
func (r *Report) Summary() string {
	parts := make([]string, len(ir.Outcomes))
	for i, o := range ir.Outcomes {
		parts[i] = fmt.Sprintf("%s=%d", o, r.Count(o))
	}
	return strings.Join(parts, " ")
}
