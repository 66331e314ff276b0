// Package scenario runs scripted event sequences against a router.
//
// A scenario file (YAML or TOML) declares Lua models, observer scripts
// attached to them and a list of steps:
//
//	name: counter
//	models:
//	  - id: counter
//	    script: models/counter.lua
//	observers:
//	  - name: all
//	    model: counter
//	    scripts: observers/**/*.lua
//	steps:
//	  - publish: increment
//	    model: counter
//	    payload: 2
//	  - publish: configure
//	    model: counter
//	    payload_json: '{"step": 5}'
//	  - dispose: all
//	  - broadcast: reset
//
// Script paths and globs are relative to the scenario file. Run returns a
// Report with every handler invocation, the failures of each step and the
// final state of every model.
package scenario
