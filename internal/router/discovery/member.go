package discovery

import (
	"fmt"
	"reflect"

	"github.com/dshills/stagerouter/internal/router/dispatch"
)

// Member is a named handler candidate exposed by a MemberSource.
type Member struct {
	// Name is matched against the naming convention.
	Name string

	// Handler is invoked when the member is bound.
	Handler dispatch.Handler

	// Annotations are explicit bindings carried by the member.
	Annotations []Annotation
}

// MemberSource is implemented by targets that are not plain Go values,
// such as script objects, and list their own resolved members. Each name
// must appear once; inherited members that are overridden must be omitted.
type MemberSource interface {
	ObserverMembers() ([]Member, error)
}

var (
	contextType = reflect.TypeOf((*dispatch.Context)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// adaptMethod turns a bound method value into a dispatch.Handler. The
// method must take (event E, *dispatch.Context, model M) and return nothing
// or an error.
func adaptMethod(name string, fn reflect.Value) (dispatch.Handler, error) {
	ft := fn.Type()
	if ft.NumIn() != 3 || ft.In(1) != contextType {
		return nil, fmt.Errorf("%s: %w: want func(event, *dispatch.Context, model) [error], have %s", name, ErrInvalidHandler, ft)
	}
	returnsErr := false
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) != errorType {
			return nil, fmt.Errorf("%s: %w: result must be error, have %s", name, ErrInvalidHandler, ft.Out(0))
		}
		returnsErr = true
	default:
		return nil, fmt.Errorf("%s: %w: too many results in %s", name, ErrInvalidHandler, ft)
	}

	eventType, modelType := ft.In(0), ft.In(2)

	// Fast path for the common untyped signature.
	if !returnsErr && eventType == anyType && modelType == anyType {
		if f, ok := fn.Interface().(func(any, *dispatch.Context, any)); ok {
			return func(event any, ctx *dispatch.Context, model any) error {
				f(event, ctx, model)
				return nil
			}, nil
		}
	}
	if returnsErr && eventType == anyType && modelType == anyType {
		if f, ok := fn.Interface().(func(any, *dispatch.Context, any) error); ok {
			return f, nil
		}
	}

	return func(event any, ctx *dispatch.Context, model any) error {
		ev, err := argument(eventType, event, "event")
		if err != nil {
			return err
		}
		mv, err := argument(modelType, model, "model")
		if err != nil {
			return err
		}
		out := fn.Call([]reflect.Value{ev, reflect.ValueOf(ctx), mv})
		if returnsErr && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	}, nil
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// argument converts v to a value assignable to parameter type t.
func argument(t reflect.Type, v any, what string) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil %s for %s", dispatch.ErrPayloadType, what, t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s is %T, handler wants %s", dispatch.ErrPayloadType, what, v, t)
}

// reflectMembers lists the methods of a Go value as members, in method-set
// order, with their annotations resolved. Only members that are annotated
// or match the naming convention are adapted; other methods are ignored
// even if they are not handler shaped.
func reflectMembers(target any, prefix string, annotations *Annotations) ([]candidate, error) {
	v := reflect.ValueOf(target)
	t := v.Type()

	var out []candidate
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		c := candidate{name: m.Name, annotations: annotations.Lookup(t, m.Name)}
		if !c.claimed(prefix) {
			continue
		}
		h, err := adaptMethod(m.Name, v.Method(i))
		if err != nil {
			return nil, err
		}
		c.handler = h
		out = append(out, c)
	}

	if t.Kind() != reflect.Pointer {
		if err := pointerOnlyHandler(t, prefix, annotations); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// pointerOnlyHandler reports a claimed method that exists on *t but not
// on t.
func pointerOnlyHandler(t reflect.Type, prefix string, annotations *Annotations) error {
	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if _, ok := t.MethodByName(m.Name); ok {
			continue
		}
		c := candidate{name: m.Name, annotations: annotations.Lookup(t, m.Name)}
		if c.claimed(prefix) {
			return fmt.Errorf("%s.%s: %w", t, m.Name, ErrPointerReceiver)
		}
	}
	return nil
}
