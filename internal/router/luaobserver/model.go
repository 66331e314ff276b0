package luaobserver

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Model is a Lua table registered with a router as a model. Handlers
// receive the table itself, so changes they make are visible in later
// events and in Snapshot.
type Model struct {
	state *State
	table *lua.LTable
	name  string
}

// NewModel wraps table, owned by state.
func NewModel(state *State, table *lua.LTable, name string) *Model {
	return &Model{state: state, table: table, name: name}
}

// Name returns the name the model was created with.
func (m *Model) Name() string {
	return m.name
}

// LuaValue returns the model table.
func (m *Model) LuaValue() lua.LValue {
	return m.table
}

// Snapshot converts the table's data fields to Go values. Functions and
// fields starting with "__" are omitted.
func (m *Model) Snapshot() (map[string]any, error) {
	var out map[string]any
	err := m.state.With(func(L *lua.LState) error {
		switch v := NewBridge(L).ToGoValue(m.table).(type) {
		case map[string]any:
			out = v
		case []any:
			out = map[string]any{"items": v}
		default:
			return fmt.Errorf("model %s: unexpected snapshot %T", m.name, v)
		}
		return nil
	})
	return out, err
}

// Get returns a field of the table converted to a Go value.
func (m *Model) Get(key string) (any, error) {
	var out any
	err := m.state.With(func(L *lua.LState) error {
		out = NewBridge(L).ToGoValue(L.GetField(m.table, key))
		return nil
	})
	return out, err
}
