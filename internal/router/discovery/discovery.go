package discovery

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/dshills/stagerouter/internal/router/dispatch"
	"github.com/dshills/stagerouter/internal/router/stage"
)

// DefaultPrefix is the naming-convention prefix used when none is given.
const DefaultPrefix = "Observe_"

// Binding is one discovered (event, stage, handler) triple.
type Binding struct {
	EventName string
	Stage     stage.Stage
	Member    string
	Handler   dispatch.Handler
}

// Observer is the result of running discovery on one target.
type Observer struct {
	Target   any
	Prefix   string
	Bindings []Binding
}

// Len returns the number of bindings.
func (o *Observer) Len() int {
	return len(o.Bindings)
}

// Lookup returns the bindings for an event and stage in discovery order.
func (o *Observer) Lookup(eventName string, st stage.Stage) []Binding {
	var out []Binding
	for _, b := range o.Bindings {
		if b.EventName == eventName && b.Stage == st {
			out = append(out, b)
		}
	}
	return out
}

// Events returns the distinct event names observed, sorted.
func (o *Observer) Events() []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range o.Bindings {
		if !seen[b.EventName] {
			seen[b.EventName] = true
			out = append(out, b.EventName)
		}
	}
	sort.Strings(out)
	return out
}

type config struct {
	prefix      string
	annotations *Annotations
}

// Option configures Discover.
type Option func(*config)

// WithPrefix sets the naming-convention prefix. An empty prefix keeps the
// default.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithAnnotations reads declarative metadata from a instead of
// DefaultAnnotations.
func WithAnnotations(a *Annotations) Option {
	return func(c *config) {
		if a != nil {
			c.annotations = a
		}
	}
}

// Discover finds the handlers exposed by target. Targets implementing
// MemberSource list their own members; any other value is inspected
// through its method set.
func Discover(target any, opts ...Option) (*Observer, error) {
	cfg := config{prefix: DefaultPrefix, annotations: DefaultAnnotations}
	for _, opt := range opts {
		opt(&cfg)
	}

	if target == nil {
		return nil, ErrNilTarget
	}
	if v := reflect.ValueOf(target); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, ErrNilTarget
	}

	var (
		candidates []candidate
		err        error
	)
	if src, ok := target.(MemberSource); ok {
		candidates, err = sourceMembers(src, cfg.prefix)
	} else {
		candidates, err = reflectMembers(target, cfg.prefix, cfg.annotations)
	}
	if err != nil {
		return nil, err
	}

	obs := &Observer{Target: target, Prefix: cfg.prefix}
	for _, c := range candidates {
		bindings, err := c.bind(cfg.prefix)
		if err != nil {
			return nil, err
		}
		obs.Bindings = append(obs.Bindings, bindings...)
	}
	return obs, nil
}

// candidate is a member selected by convention or annotation.
type candidate struct {
	name        string
	handler     dispatch.Handler
	annotations []Annotation
}

func (c candidate) claimed(prefix string) bool {
	if len(c.annotations) > 0 {
		return true
	}
	_, _, ok := stage.Split(c.name, prefix)
	return ok
}

// bind resolves a candidate into bindings. Annotations take precedence over
// the member name; a name that implies a different stage is ambiguous.
func (c candidate) bind(prefix string) ([]Binding, error) {
	event, st, named := stage.Split(c.name, prefix)

	if len(c.annotations) == 0 {
		if !named {
			return nil, nil
		}
		return []Binding{{EventName: event, Stage: st, Member: c.name, Handler: c.handler}}, nil
	}

	out := make([]Binding, 0, len(c.annotations))
	for _, ann := range c.annotations {
		if named && st != ann.Stage {
			return nil, &AmbiguousHandlerError{
				Member:          c.name,
				ConventionEvent: event,
				ConventionStage: st,
				AnnotatedEvent:  ann.EventName,
				AnnotatedStage:  ann.Stage,
			}
		}
		out = append(out, Binding{EventName: ann.EventName, Stage: ann.Stage, Member: c.name, Handler: c.handler})
	}
	return out, nil
}

func sourceMembers(src MemberSource, prefix string) ([]candidate, error) {
	members, err := src.ObserverMembers()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Name < members[j].Name
	})

	out := make([]candidate, 0, len(members))
	for i, m := range members {
		if i > 0 && members[i-1].Name == m.Name {
			return nil, fmt.Errorf("member %s listed twice", m.Name)
		}
		c := candidate{name: m.Name, handler: m.Handler, annotations: m.Annotations}
		if !c.claimed(prefix) {
			continue
		}
		if c.handler == nil {
			return nil, fmt.Errorf("%s: %w: nil handler", m.Name, ErrInvalidHandler)
		}
		out = append(out, c)
	}
	return out, nil
}
