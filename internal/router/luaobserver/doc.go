// Package luaobserver lets Lua tables act as models and observers.
//
// A script returns a table. Handler functions are found on the table and
// on the tables reachable through its metatable __index chain, so a
// "class" table set as __index of an instance provides inherited handlers
// that the instance may override:
//
//	local Base = {}
//	Base.__index = Base
//
//	function Base:Observe_save(event, ctx, model)
//	    model.saved = true
//	    ctx:commit()
//	end
//
//	local obs = setmetatable({}, Base)
//	obs.__observe = { on_reset = { event = "reset", stage = "committed" } }
//	function obs:on_reset(event, ctx, model) end
//	return obs
//
// Handlers are called as methods: fn(self, event, ctx, model). The ctx
// table offers commit, cancel, is_committed and is_cancelled functions
// plus the event_name, stage and model_id fields. A Lua error raised by a
// handler is reported as a handler failure.
//
// __observe maps a member name to a string (event name, normal stage), to
// a table with event and optional stage fields, or to a list of those.
//
// # Thread Safety
//
// All access to a State is serialised by its mutex. Handlers of every
// observer and model created from one State share that lock.
package luaobserver
