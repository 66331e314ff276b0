package scenario

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/stagerouter/internal/logging"
)

const counterModel = `return { count = 0, step = 1 }`

const counterObserver = `
local o = {}

function o:Observe_increment_preview(e, ctx, m)
  if m.locked then ctx:cancel() end
end

function o:Observe_increment(e, ctx, m)
  m.count = m.count + (e or m.step)
  ctx:commit()
end

function o:Observe_increment_committed(e, ctx, m)
  m.committed = (m.committed or 0) + 1
end

function o:Observe_configure(e, ctx, m)
  m.step = e.step
  m.locked = e.locked
end

return o
`

const auditObserver = `
local a = { __observe = { record = { event = "reset", stage = "committed" } } }

function a:On_reset(e, ctx, m)
  m.count = 0
  ctx:commit()
end

function a:record(e, ctx, m)
  m.resets = (m.resets or 0) + 1
end

function a:On_explode(e, ctx, m)
  error("exploded")
end

return a
`

const counterScenario = `
name: counter
models:
  - id: counter
    script: models/counter.lua
  - id: spare
observers:
  - name: core
    model: counter
    scripts: observers/core/*.lua
  - name: audit
    model: counter
    scripts: observers/**/audit.lua
    prefix: On_
steps:
  - publish: increment
    model: counter
    payload: 2
  - publish: increment
    model: counter
  - publish: configure
    model: counter
    payload_json: '{"step": 10, "locked": false}'
  - publish: increment
    model: counter
  - broadcast: reset
  - publish: explode
    model: counter
  - dispose: core
  - publish: increment
    model: counter
  - publish: increment
    model: countr
`

func TestRun_LogsTaggedByComponent(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"/scn/counter.yaml":                   counterScenario,
		"/scn/models/counter.lua":             counterModel,
		"/scn/observers/core/counter.lua":     counterObserver,
		"/scn/observers/extra/deep/audit.lua": auditObserver,
	})

	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.DebugLevel, Output: &buf})
	_, err := Run(context.Background(), fs, "/scn/counter.yaml", Options{Logger: logger})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"component":"router"`)
	assert.Contains(t, out, `"component":"scenario"`)
	assert.Contains(t, out, `"scenario":"counter"`)
	assert.Contains(t, out, `"message":"observers attached"`)
	assert.Contains(t, out, `"observed":["configure","increment"]`)
}

func writeFiles(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func TestRun_Counter(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"/scn/counter.yaml":                  counterScenario,
		"/scn/models/counter.lua":            counterModel,
		"/scn/observers/core/counter.lua":    counterObserver,
		"/scn/observers/extra/deep/audit.lua": auditObserver,
	})

	report, err := Run(context.Background(), fs, "/scn/counter.yaml", Options{})
	require.NoError(t, err)

	assert.Equal(t, "counter", report.Scenario)
	counter := report.Models["counter"]
	// 2 + 1 + 10, then reset; increments after dispose do nothing.
	assert.Equal(t, int64(0), counter["count"])
	assert.Equal(t, int64(3), counter["committed"])
	assert.Equal(t, int64(1), counter["resets"])
	assert.Equal(t, int64(10), counter["step"])
	assert.Equal(t, map[string]any{}, report.Models["spare"])

	require.Len(t, report.Errors, 2)
	assert.Equal(t, 5, report.Errors[0].Step)
	assert.Contains(t, report.Errors[0].Message, "exploded")
	assert.Equal(t, 8, report.Errors[1].Step)
	assert.Contains(t, report.Errors[1].Message, `did you mean "counter"`)
	assert.True(t, report.Failed())

	var stages []string
	for _, inv := range report.Invocations {
		if inv.Step == 0 {
			stages = append(stages, inv.Stage)
		}
	}
	assert.Equal(t, []string{"preview", "normal", "committed"}, stages)

	for _, inv := range report.Invocations {
		assert.NotEqual(t, 7, inv.Step, "disposed observer ran")
	}
	assert.Zero(t, report.Stats.ActiveSubscriptions)
}

func TestRun_TOML(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"/scn/counter.toml": `
[[models]]
id = "counter"
script = "models/counter.lua"

[[observers]]
name = "core"
model = "counter"
scripts = "observers/*.lua"

[[steps]]
publish = "increment"
model = "counter"
payload = 5

[[steps]]
unregister = "counter"

[[steps]]
publish = "increment"
model = "counter"
`,
		"/scn/models/counter.lua":    counterModel,
		"/scn/observers/counter.lua": counterObserver,
	})

	report, err := Run(context.Background(), fs, "/scn/counter.toml", Options{})
	require.NoError(t, err)
	assert.Equal(t, "counter", report.Scenario)
	assert.Equal(t, int64(5), report.Models["counter"]["count"])
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Errors[0].Step)
}

func TestRun_SetupErrors(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"/scn/noscripts.yaml": `
models: [{id: m}]
observers: [{name: o, model: m, scripts: "missing/*.lua"}]
`,
		"/scn/badscript.yaml": `
models: [{id: m, script: bad.lua}]
`,
		"/scn/bad.lua": `return 1`,
	})

	_, err := Run(context.Background(), fs, "/scn/noscripts.yaml", Options{})
	assert.ErrorContains(t, err, "no scripts match")

	_, err = Run(context.Background(), fs, "/scn/badscript.yaml", Options{})
	assert.Error(t, err)

	_, err = Run(context.Background(), fs, "/scn/absent.yaml", Options{})
	assert.Error(t, err)
}

func TestRun_ContextCancelled(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"/scn/s.yaml": "models: [{id: m}]\nsteps: [{broadcast: ping}]\n",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, fs, "/scn/s.yaml", Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecode_Validation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"duplicate model", "models: [{id: m}, {id: m}]"},
		{"missing model id", "models: [{script: x.lua}]"},
		{"observer unknown model", "observers: [{name: o, model: x, scripts: '*.lua'}]"},
		{"two actions", "models: [{id: m}]\nsteps: [{publish: a, broadcast: b, model: m}]"},
		{"no action", "steps: [{model: m}]"},
		{"dispose unknown", "steps: [{dispose: ghost}]"},
		{"publish without model", "steps: [{publish: a}]"},
		{"bad json", "models: [{id: m}]\nsteps: [{publish: a, model: m, payload_json: '{'}]"},
		{"unknown field", "modles: []"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("s.yaml", []byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := Decode("s.ini", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestStep_Value(t *testing.T) {
	v, err := Step{PayloadJSON: `{"a": [1, 2], "b": "x"}`, Payload: 3}.Value()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{1.0, 2.0}, "b": "x"}, v)

	v, err = Step{Payload: 3}.Value()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestGlob(t *testing.T) {
	fs := writeFiles(t, map[string]string{
		"/a/x.lua":     "",
		"/a/b/y.lua":   "",
		"/a/b/c/z.lua": "",
		"/a/b/c/z.txt": "",
	})

	matches, err := Glob(afero.NewBasePathFs(fs, "/a"), "**/*.lua")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/c/z.lua", "b/y.lua", "x.lua"}, matches)

	_, err = Glob(fs, "[")
	assert.Error(t, err)
}
