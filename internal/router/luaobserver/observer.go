package luaobserver

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/stagerouter/internal/router/discovery"
	"github.com/dshills/stagerouter/internal/router/dispatch"
	"github.com/dshills/stagerouter/internal/router/stage"
)

const (
	// AnnotationsField holds declarative handler bindings.
	AnnotationsField = "__observe"

	maxIndexDepth = 32
)

// Observer exposes the handler functions of a Lua table to discovery.
type Observer struct {
	state *State
	self  *lua.LTable
	name  string
}

// NewObserver wraps self, a table owned by state.
func NewObserver(state *State, self *lua.LTable, name string) *Observer {
	return &Observer{state: state, self: self, name: name}
}

// Name returns the name the observer was created with.
func (o *Observer) Name() string {
	return o.name
}

// LuaValue returns the observer table.
func (o *Observer) LuaValue() lua.LValue {
	return o.self
}

// ObserverMembers lists the functions reachable from the table, nearest
// definition first, with their __observe annotations.
func (o *Observer) ObserverMembers() ([]discovery.Member, error) {
	var members []discovery.Member
	err := o.state.With(func(L *lua.LState) error {
		chain := indexChain(L, o.self)

		// Any value shadows a function of the same name further up the chain.
		seen := make(map[string]bool)
		for _, t := range chain {
			t.ForEach(func(k, v lua.LValue) {
				name, ok := k.(lua.LString)
				if !ok || seen[string(name)] {
					return
				}
				seen[string(name)] = true
				if fn, ok := v.(*lua.LFunction); ok {
					members = append(members, discovery.Member{
						Name:    string(name),
						Handler: o.handler(fn),
					})
				}
			})
		}

		annotations, err := collectAnnotations(chain)
		if err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
		bound := make(map[string]bool, len(annotations))
		for i := range members {
			if anns, ok := annotations[members[i].Name]; ok {
				members[i].Annotations = anns
				bound[members[i].Name] = true
			}
		}
		for name := range annotations {
			if !bound[name] {
				return fmt.Errorf("%s: %w: %s is not a function", o.name, ErrInvalidAnnotation, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

func (o *Observer) handler(fn *lua.LFunction) dispatch.Handler {
	return func(event any, ctx *dispatch.Context, model any) error {
		return o.state.invoke(fn, o.self, event, ctx, model)
	}
}

// indexChain returns t followed by the tables reachable through
// metatable __index fields.
func indexChain(L *lua.LState, t *lua.LTable) []*lua.LTable {
	chain := []*lua.LTable{t}
	visited := map[*lua.LTable]bool{t: true}

	for cur := t; len(chain) < maxIndexDepth; {
		mt, ok := L.GetMetatable(cur).(*lua.LTable)
		if !ok {
			break
		}
		next, ok := mt.RawGetString("__index").(*lua.LTable)
		if !ok || visited[next] {
			break
		}
		visited[next] = true
		chain = append(chain, next)
		cur = next
	}
	return chain
}

// collectAnnotations merges the __observe tables along chain. The nearest
// table that annotates a member wins.
func collectAnnotations(chain []*lua.LTable) (map[string][]discovery.Annotation, error) {
	out := make(map[string][]discovery.Annotation)
	for _, t := range chain {
		spec, ok := t.RawGetString(AnnotationsField).(*lua.LTable)
		if !ok {
			continue
		}

		var err error
		local := make(map[string][]discovery.Annotation)
		spec.ForEach(func(k, v lua.LValue) {
			if err != nil {
				return
			}
			name, ok := k.(lua.LString)
			if !ok {
				err = fmt.Errorf("%w: key %s is not a string", ErrInvalidAnnotation, k.Type())
				return
			}
			if _, done := out[string(name)]; done {
				return
			}
			var anns []discovery.Annotation
			anns, err = parseAnnotations(string(name), v)
			local[string(name)] = anns
		})
		if err != nil {
			return nil, err
		}
		for name, anns := range local {
			out[name] = anns
		}
	}
	return out, nil
}

func parseAnnotations(member string, v lua.LValue) ([]discovery.Annotation, error) {
	switch val := v.(type) {
	case lua.LString:
		if val == "" {
			return nil, fmt.Errorf("%w: %s has an empty event name", ErrInvalidAnnotation, member)
		}
		return []discovery.Annotation{{EventName: string(val), Stage: stage.Normal}}, nil

	case *lua.LTable:
		if event := val.RawGetString("event"); event != lua.LNil {
			ann, err := parseAnnotationTable(member, val)
			if err != nil {
				return nil, err
			}
			return []discovery.Annotation{ann}, nil
		}

		var out []discovery.Annotation
		for i := 1; i <= val.Len(); i++ {
			anns, err := parseAnnotations(member, val.RawGetInt(i))
			if err != nil {
				return nil, err
			}
			out = append(out, anns...)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %s has no bindings", ErrInvalidAnnotation, member)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s has a %s value", ErrInvalidAnnotation, member, v.Type())
	}
}

func parseAnnotationTable(member string, t *lua.LTable) (discovery.Annotation, error) {
	event, ok := t.RawGetString("event").(lua.LString)
	if !ok || event == "" {
		return discovery.Annotation{}, fmt.Errorf("%w: %s needs a string event", ErrInvalidAnnotation, member)
	}

	st := stage.Normal
	if raw := t.RawGetString("stage"); raw != lua.LNil {
		name, ok := raw.(lua.LString)
		if !ok {
			return discovery.Annotation{}, fmt.Errorf("%w: %s stage must be a string", ErrInvalidAnnotation, member)
		}
		parsed, err := stage.Parse(string(name))
		if err != nil {
			return discovery.Annotation{}, fmt.Errorf("%w: %s: %v", ErrInvalidAnnotation, member, err)
		}
		st = parsed
	}
	return discovery.Annotation{EventName: string(event), Stage: st}, nil
}
