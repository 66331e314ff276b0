package scenario

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/dshills/stagerouter/internal/logging"
	"github.com/dshills/stagerouter/internal/router"
	"github.com/dshills/stagerouter/internal/router/luaobserver"
)

// Options configures Run.
type Options struct {
	// Logger receives router and runner logs.
	Logger zerolog.Logger

	// DefaultPrefix overrides the router's naming-convention prefix.
	DefaultPrefix string

	// Metrics, when set, instruments the router.
	Metrics *router.Metrics

	// LuaOptions configure the Lua state shared by all scripts.
	LuaOptions []luaobserver.StateOption
}

// StepError is the failure of one step.
type StepError struct {
	Step    int    `yaml:"step" json:"step"`
	Kind    string `yaml:"kind" json:"kind"`
	Message string `yaml:"message" json:"message"`
}

// Report is the outcome of a run.
type Report struct {
	Scenario    string                    `yaml:"scenario" json:"scenario"`
	Invocations []InvocationRecord        `yaml:"invocations" json:"invocations"`
	Errors      []StepError               `yaml:"errors,omitempty" json:"errors,omitempty"`
	Models      map[string]map[string]any `yaml:"models" json:"models"`
	Stats       router.Stats              `yaml:"-" json:"-"`
}

// Failed reports whether any step failed.
func (r *Report) Failed() bool {
	return len(r.Errors) > 0
}

// Run loads the scenario at scenarioPath on fsys and executes it.
// Step failures are collected in the report; setup failures are returned.
func Run(ctx context.Context, fsys afero.Fs, scenarioPath string, opts Options) (*Report, error) {
	file, err := LoadFile(fsys, scenarioPath)
	if err != nil {
		return nil, err
	}
	baseDir, err := filepath.Abs(filepath.Dir(scenarioPath))
	if err != nil {
		return nil, err
	}
	return Execute(ctx, fsys, baseDir, file, opts)
}

// Execute runs an already decoded scenario. Script paths resolve against
// baseDir on fsys, which must be absolute; an empty baseDir uses fsys as
// is.
func Execute(ctx context.Context, fsys afero.Fs, baseDir string, file *File, opts Options) (*Report, error) {
	base := opts.Logger.With().Str("scenario", file.Name).Logger()
	logger := logging.Component(base, "scenario")

	state := luaobserver.NewState(opts.LuaOptions...)
	defer state.Close()

	rec := &Recorder{}
	routerOpts := []router.Option{
		router.WithLogger(logging.Component(base, "router")),
		router.WithInvocationHook(rec.Record),
	}
	if opts.DefaultPrefix != "" {
		routerOpts = append(routerOpts, router.WithDefaultPrefix(opts.DefaultPrefix))
	}
	if opts.Metrics != nil {
		routerOpts = append(routerOpts, router.WithMetrics(opts.Metrics))
	}
	r := router.New(routerOpts...)

	root := fsys
	if baseDir != "" {
		root = afero.NewBasePathFs(fsys, baseDir)
	}

	models := make(map[string]*luaobserver.Model, len(file.Models))
	for _, spec := range file.Models {
		m, err := loadModel(state, root, spec)
		if err != nil {
			return nil, err
		}
		if err := r.RegisterModel(spec.ID, m); err != nil {
			return nil, err
		}
		models[spec.ID] = m
	}

	subscriptions := make(map[string]*router.Disposables, len(file.Observers))
	for _, spec := range file.Observers {
		group, err := attachObservers(r, state, root, spec)
		if err != nil {
			return nil, err
		}
		subscriptions[spec.Name] = group
		events, err := r.ObservedEvents(spec.Model)
		if err != nil {
			return nil, err
		}
		logger.Debug().
			Str("observer", spec.Name).
			Str("model", spec.Model).
			Int("subscriptions", group.Len()).
			Strs("observed", events).
			Msg("observers attached")
	}

	report := &Report{Scenario: file.Name}
	for i, step := range file.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec.SetStep(i)
		if err := runStep(r, subscriptions, step); err != nil {
			report.Errors = append(report.Errors, StepError{Step: i, Kind: step.Kind(), Message: err.Error()})
			logger.Warn().Err(err).Int("step", i).Str("kind", step.Kind()).Msg("step failed")
		}
	}

	for _, group := range subscriptions {
		group.Dispose()
	}

	report.Invocations = rec.Records()
	report.Models = make(map[string]map[string]any, len(models))
	for id, m := range models {
		snap, err := m.Snapshot()
		if err != nil {
			return nil, err
		}
		report.Models[id] = snap
	}
	report.Stats = r.Stats()
	return report, nil
}

func loadModel(state *luaobserver.State, root afero.Fs, spec ModelSpec) (*luaobserver.Model, error) {
	if spec.Script == "" {
		tbl, err := state.LoadTableString("return {}", spec.ID)
		if err != nil {
			return nil, err
		}
		return luaobserver.NewModel(state, tbl, spec.ID), nil
	}

	tbl, err := state.LoadTable(root, spec.Script)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", spec.ID, err)
	}
	return luaobserver.NewModel(state, tbl, spec.ID), nil
}

// attachObservers subscribes every script matching spec.Scripts, in path
// order.
func attachObservers(r *router.Router, state *luaobserver.State, root afero.Fs, spec ObserverSpec) (*router.Disposables, error) {
	matches, err := Glob(root, spec.Scripts)
	if err != nil {
		return nil, fmt.Errorf("observer %s: %w", spec.Name, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("observer %s: no scripts match %q", spec.Name, spec.Scripts)
	}

	group := &router.Disposables{}
	for _, match := range matches {
		tbl, err := state.LoadTable(root, match)
		if err != nil {
			group.Dispose()
			return nil, fmt.Errorf("observer %s: %w", spec.Name, err)
		}
		sub, err := r.ObserveEventsOn(spec.Model, luaobserver.NewObserver(state, tbl, match), router.WithPrefix(spec.Prefix))
		if err != nil {
			group.Dispose()
			return nil, fmt.Errorf("observer %s (%s): %w", spec.Name, match, err)
		}
		group.Add(sub)
	}
	return group, nil
}

// Glob returns the files on fsys matching a doublestar pattern, sorted.
func Glob(fsys afero.Fs, pattern string) ([]string, error) {
	pattern = path.Clean(filepath.ToSlash(pattern))
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", doublestar.ErrBadPattern, pattern)
	}

	matches, err := doublestar.Glob(afero.NewIOFS(fsys), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func runStep(r *router.Router, subscriptions map[string]*router.Disposables, step Step) error {
	switch {
	case step.Publish != "":
		payload, err := step.Value()
		if err != nil {
			return err
		}
		return r.PublishEvent(step.Model, step.Publish, payload)

	case step.Broadcast != "":
		payload, err := step.Value()
		if err != nil {
			return err
		}
		return r.BroadcastEvent(step.Broadcast, payload)

	case step.Dispose != "":
		group, ok := subscriptions[step.Dispose]
		if !ok {
			return fmt.Errorf("unknown observer %q", step.Dispose)
		}
		group.Dispose()
		return nil

	case step.Unregister != "":
		if !r.IsRegistered(step.Unregister) {
			return &router.UnknownModelError{ModelID: step.Unregister}
		}
		r.UnregisterModel(step.Unregister)
		return nil
	}
	return errors.New("empty step")
}
