package luaobserver

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/stagerouter/internal/router/dispatch"
)

// invoke calls fn(self, event, ctx, model) with the state locked.
func (s *State) invoke(fn *lua.LFunction, self *lua.LTable, event any, ctx *dispatch.Context, model any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	b := NewBridge(s.L)
	_, err := s.callLocked(fn, self, b.ToLuaValue(event), contextTable(s.L, ctx), b.ToLuaValue(model))
	return err
}

// contextTable exposes ctx to Lua. The functions ignore their arguments so
// both ctx.commit() and ctx:commit() work.
func contextTable(L *lua.LState, ctx *dispatch.Context) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("event_name", lua.LString(ctx.EventName()))
	t.RawSetString("model_id", lua.LString(ctx.ModelID()))
	t.RawSetString("stage", lua.LString(ctx.Stage().String()))

	t.RawSetString("commit", L.NewFunction(func(L *lua.LState) int {
		ctx.Commit()
		return 0
	}))
	t.RawSetString("cancel", L.NewFunction(func(L *lua.LState) int {
		ctx.Cancel()
		return 0
	}))
	t.RawSetString("is_committed", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(ctx.IsCommitted()))
		return 1
	}))
	t.RawSetString("is_cancelled", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(ctx.IsCancelled()))
		return 1
	}))
	return t
}
