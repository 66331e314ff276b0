package discovery

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/dshills/stagerouter/internal/router/stage"
)

// Annotation pairs a member with an explicit event and stage.
type Annotation struct {
	EventName string
	Stage     stage.Stage
}

// Annotations is a side table of (type, method) -> []Annotation.
// It is safe for concurrent use.
type Annotations struct {
	mu     sync.RWMutex
	byType map[reflect.Type]map[string][]Annotation
}

// DefaultAnnotations is the table ObserveEvent writes to and Discover reads
// unless WithAnnotations is given.
var DefaultAnnotations = NewAnnotations()

// NewAnnotations creates an empty annotation table.
func NewAnnotations() *Annotations {
	return &Annotations{byType: make(map[reflect.Type]map[string][]Annotation)}
}

// Add annotates method of type t. Pointer and non-pointer forms of a type
// share one entry.
func (a *Annotations) Add(t reflect.Type, method string, ann Annotation) error {
	if t == nil {
		return fmt.Errorf("annotate %s: %w", method, ErrNilTarget)
	}
	if !ann.Stage.Valid() {
		return fmt.Errorf("annotate %s.%s: invalid stage %d", t, method, ann.Stage)
	}
	if ann.EventName == "" {
		return fmt.Errorf("annotate %s.%s: empty event name", t, method)
	}
	base := baseType(t)
	if _, ok := reflect.PointerTo(base).MethodByName(method); !ok {
		return fmt.Errorf("annotate %s.%s: %w", base, method, ErrUnknownMethod)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	methods := a.byType[base]
	if methods == nil {
		methods = make(map[string][]Annotation)
		a.byType[base] = methods
	}
	methods[method] = append(methods[method], ann)
	return nil
}

// Lookup returns the annotations for method as seen on t, following the
// embedding chain when the method is promoted from an embedded type.
func (a *Annotations) Lookup(t reflect.Type, method string) []Annotation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lookup(baseType(t), method, 0)
}

func (a *Annotations) lookup(base reflect.Type, method string, depth int) []Annotation {
	if anns := a.byType[base][method]; len(anns) > 0 {
		out := make([]Annotation, len(anns))
		copy(out, anns)
		return out
	}
	if depth > maxEmbedDepth {
		return nil
	}
	if from := promotedFrom(base, method); from != nil {
		return a.lookup(from, method, depth+1)
	}
	return nil
}

// Len returns the number of annotated methods.
func (a *Annotations) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := 0
	for _, methods := range a.byType {
		n += len(methods)
	}
	return n
}

// ObserveEvent annotates method of T in DefaultAnnotations. The stage
// defaults to Normal. It panics if T has no such method, so misspellings
// surface when the package initialises. It always returns true so it can
// initialise a package-level var.
func ObserveEvent[T any](method, eventName string, st ...stage.Stage) bool {
	ann := Annotation{EventName: eventName, Stage: stage.Normal}
	if len(st) > 0 {
		ann.Stage = st[0]
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	if err := DefaultAnnotations.Add(t, method, ann); err != nil {
		panic(err)
	}
	return true
}

const maxEmbedDepth = 16

func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// promotedFrom returns the embedded type whose annotations apply to a
// struct's method. Embedded fields are searched breadth first, mirroring
// Go's selector rules: the shallowest depth with exactly one candidate wins.
// A method redefined on the outer type still resolves to the embedded
// declaration here, so the outer type inherits its annotations unless it
// annotates the method itself.
func promotedFrom(base reflect.Type, method string) reflect.Type {
	if base.Kind() != reflect.Struct {
		return nil
	}

	level := []reflect.Type{base}
	seen := map[reflect.Type]bool{base: true}
	for depth := 0; depth < maxEmbedDepth && len(level) > 0; depth++ {
		var next, found []reflect.Type
		for _, st := range level {
			if st.Kind() != reflect.Struct {
				continue
			}
			for i := 0; i < st.NumField(); i++ {
				f := st.Field(i)
				if !f.Anonymous {
					continue
				}
				ft := baseType(f.Type)
				if seen[ft] {
					continue
				}
				seen[ft] = true
				if _, ok := reflect.PointerTo(ft).MethodByName(method); ok {
					found = append(found, ft)
				}
				next = append(next, ft)
			}
		}
		switch len(found) {
		case 0:
			level = next
		case 1:
			return found[0]
		default:
			return nil
		}
	}
	return nil
}
