package scenario

import (
	"sync"
	"time"

	"github.com/dshills/stagerouter/internal/router"
)

// InvocationRecord is one handler call seen during a run.
type InvocationRecord struct {
	Step     int           `yaml:"step" json:"step"`
	Model    string        `yaml:"model" json:"model"`
	Event    string        `yaml:"event" json:"event"`
	Stage    string        `yaml:"stage" json:"stage"`
	Member   string        `yaml:"member" json:"member"`
	Error    string        `yaml:"error,omitempty" json:"error,omitempty"`
	Panicked bool          `yaml:"panicked,omitempty" json:"panicked,omitempty"`
	Duration time.Duration `yaml:"-" json:"-"`
}

// Recorder collects invocations through a router invocation hook.
type Recorder struct {
	mu      sync.Mutex
	step    int
	records []InvocationRecord
}

// SetStep sets the step index attached to later records.
func (r *Recorder) SetStep(step int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.step = step
}

// Record is a router invocation hook.
func (r *Recorder) Record(inv router.Invocation) {
	rec := InvocationRecord{
		Model:    inv.ModelID,
		Event:    inv.EventName,
		Stage:    inv.Stage.String(),
		Member:   inv.Member,
		Panicked: inv.Result.Panicked,
		Duration: inv.Result.Duration,
	}
	switch {
	case inv.Result.Panicked:
		rec.Error = "panic"
	case inv.Result.Error != nil:
		rec.Error = inv.Result.Error.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Step = r.step
	r.records = append(r.records, rec)
}

// Records returns a copy of everything recorded.
func (r *Recorder) Records() []InvocationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]InvocationRecord(nil), r.records...)
}
