// Package pipeline runs the workflow stages in order over one model:
// load, configure, convert, compile, evaluate, synthesize and report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ReconfigureIO/hlsflow/converter"
	"github.com/ReconfigureIO/hlsflow/evaluate"
	"github.com/ReconfigureIO/hlsflow/hlsconfig"
	"github.com/ReconfigureIO/hlsflow/models"
	"github.com/ReconfigureIO/hlsflow/qnn"
	"github.com/ReconfigureIO/hlsflow/report"
	"github.com/ReconfigureIO/hlsflow/service/events"
	"github.com/ReconfigureIO/hlsflow/service/publish"
	"github.com/ReconfigureIO/hlsflow/service/storage"
	"github.com/ReconfigureIO/hlsflow/synth"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
)

// Stage names.
const (
	StageLoad     = "load"
	StageConfig   = "config"
	StageConvert  = "convert"
	StageCompile  = "compile"
	StageEvaluate = "evaluate"
	StageSynth    = "synth"
	StageReport   = "report"
	StagePublish  = "publish"
)

// StageError is the failure of one stage. Files written by earlier stages
// are left in place.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options describe one run.
type Options struct {
	ModelPath string
	// Registry resolves the artifact's classes, qnn.DefaultRegistry if nil.
	Registry    *qnn.Registry
	Granularity hlsconfig.Granularity
	// Plan is applied before Overrides, hlsconfig.DefaultPlan if nil.
	Plan      *hlsconfig.Plan
	Overrides []hlsconfig.Override
	Convert   converter.Options
	Toolchain converter.Toolchain

	// Dataset is compared on the reference and the emulation. Evaluation
	// is skipped if nil.
	Dataset *evaluate.Dataset
	// Samples limits the dataset when positive.
	Samples int
	Policy  evaluate.Policy

	// Synthesizer runs the backend. Synthesis and reporting are skipped
	// if nil.
	Synthesizer *synth.Synthesizer
	Flags       synth.Flags
}

// Result is what a run produced.
type Result struct {
	Run      models.Run
	Model    *qnn.Model
	Config   *hlsconfig.Config
	Dir      string
	Manifest converter.Manifest
	Accuracy *evaluate.Result
	// Report and ReportPath are set when synthesis ran.
	Report     *report.Report
	ReportPath string
	Summary    *models.Report
	Artifacts  publish.Artifacts
}

// Runner runs the pipeline and keeps the optional run ledger, event
// callbacks and artifact storage up to date. Stage timings are logged per
// run and also accumulated in Metrics if set. A Runner may run several
// pipelines concurrently.
type Runner struct {
	Ledger  models.RunRepo
	Events  events.EventService
	Storage storage.Service
	Metrics metrics.Registry
}

// Run runs the pipeline without ledger, events or storage.
func Run(ctx context.Context, opts Options) (*Result, error) {
	return (&Runner{}).Run(ctx, opts)
}

// runScoped event services authenticate each run separately.
type runScoped interface {
	ForRun(token string) events.EventService
}

// run is the state of one pass through the stages.
type run struct {
	*Runner
	ctx     context.Context
	opts    Options
	res     *Result
	log     *log.Entry
	events  events.EventService
	metrics metrics.Registry
}

// Run runs every stage in order and stops at the first failure, which is
// returned as a *StageError. The result is returned with the error and holds
// what the stages before the failure produced.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Registry == nil {
		opts.Registry = qnn.DefaultRegistry
	}
	if opts.Granularity == "" {
		opts.Granularity = hlsconfig.GranularityName
	}
	if opts.Plan == nil {
		opts.Plan = &hlsconfig.DefaultPlan
	}
	project := opts.Convert.ProjectName
	if project == "" {
		project = converter.DefaultProjectName
	}

	st := &run{
		Runner:  r,
		ctx:     ctx,
		opts:    opts,
		events:  r.Events,
		metrics: newRegistry(),
		res:     &Result{Run: models.NewRun(project, opts.ModelPath, opts.Convert.OutputDir, opts.Convert.Part)},
	}
	if err := st.create(); err != nil {
		return nil, errors.Wrap(err, "create run")
	}
	st.log = log.WithField("run", st.res.Run.ID)
	if st.events == nil {
		st.events = events.NopService{}
	}
	if scoped, ok := st.events.(runScoped); ok {
		st.events = scoped.ForRun(st.res.Run.Token)
	}

	err := st.stages()
	if err != nil {
		st.event(models.StatusErrored, stageOf(err), err.Error(), 1)
		st.log.WithError(err).Error("run failed")
	} else {
		st.event(models.StatusCompleted, "", "", 0)
		st.log.WithField("dir", st.res.Dir).Info("run completed")
	}
	st.logTimings()
	// Stops the per-run timers' meters.
	st.metrics.UnregisterAll()
	return st.res, err
}

var newRegistry = metrics.NewRegistry

func (st *run) create() error {
	if st.Ledger == nil {
		st.res.Run.ID = uuid.NewV4().String()
		return nil
	}
	return st.Ledger.Create(&st.res.Run)
}

func stageOf(err error) string {
	if se, ok := err.(*StageError); ok {
		return se.Stage
	}
	return ""
}

// stage times fn and wraps its error.
func (st *run) stage(name string, fn func() error) error {
	if err := st.ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.GetOrRegisterTimer("stage."+name, st.metrics).Update(d)
	if st.Metrics != nil {
		metrics.GetOrRegisterTimer("stage."+name, st.Metrics).Update(d)
	}
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func (st *run) stages() error {
	opts := st.opts
	res := st.res
	st.event(models.StatusStarted, StageLoad, "", 0)

	err := st.stage(StageLoad, func() (err error) {
		res.Model, err = qnn.Load(opts.ModelPath, opts.Registry)
		return
	})
	if err != nil {
		return err
	}

	err = st.stage(StageConfig, func() (err error) {
		res.Config, err = Configure(res.Model, opts.Granularity, *opts.Plan, opts.Overrides...)
		return
	})
	if err != nil {
		return err
	}

	var p *converter.Project
	err = st.stage(StageConvert, func() (err error) {
		p, err = converter.Convert(res.Model, res.Config, opts.Convert)
		return
	})
	if err != nil {
		return err
	}
	defer p.Close()
	res.Dir = p.Dir
	res.Manifest = p.Manifest

	err = st.stage(StageCompile, func() error {
		return p.Compile(st.ctx, opts.Toolchain)
	})
	if err != nil {
		return err
	}

	if opts.Dataset != nil {
		err = st.stage(StageEvaluate, func() error {
			ds := opts.Dataset
			if opts.Samples > 0 {
				ds = ds.Slice(opts.Samples)
			}
			acc, err := evaluate.Compare(st.ctx, res.Model, p, ds)
			if err != nil {
				return err
			}
			res.Accuracy = acc
			st.ledger(func(l models.RunRepo) error {
				return l.SetAccuracy(&res.Run, acc.Float, acc.Fixed)
			})
			return opts.Policy.Check(acc)
		})
		if err != nil {
			return err
		}
	}
	st.event(models.StatusCompiled, StageCompile, "", 0)

	if opts.Synthesizer != nil {
		st.event(models.StatusSynthesizing, StageSynth, opts.Flags.Args(), 0)
		err = st.stage(StageSynth, func() error {
			_, err := opts.Synthesizer.Synthesize(st.ctx, p, opts.Flags)
			return err
		})
		if err != nil {
			return err
		}

		err = st.stage(StageReport, func() (err error) {
			res.Report, res.ReportPath, err = report.Load(p.Dir)
			if err != nil {
				return err
			}
			summary := report.Summarise(res.Report)
			res.Summary = &summary
			st.ledger(func(l models.RunRepo) error {
				return l.StoreReport(res.Run, summary)
			})
			return nil
		})
		if err != nil {
			return err
		}
	}

	if st.Storage != nil {
		err = st.stage(StagePublish, func() (err error) {
			res.Artifacts, err = publish.Publish(st.Storage, res.Run, p.Dir, res.ReportPath)
			if err != nil {
				return err
			}
			st.ledger(func(l models.RunRepo) error {
				return l.SetArtifacts(&res.Run, res.Artifacts.Project, res.Artifacts.Report)
			})
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Configure derives the configuration of m at granularity g, then applies
// the plan's overrides followed by overrides.
func Configure(m *qnn.Model, g hlsconfig.Granularity, plan hlsconfig.Plan, overrides ...hlsconfig.Override) (*hlsconfig.Config, error) {
	cfg, err := hlsconfig.FromModel(m, g)
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(plan.Overrides(m)...); err != nil {
		return nil, err
	}
	if err := cfg.Apply(overrides...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ledger applies fn to the run ledger if there is one. Ledger failures
// are logged and do not stop the run.
func (st *run) ledger(fn func(models.RunRepo) error) {
	if st.Ledger == nil {
		return
	}
	if err := fn(st.Ledger); err != nil {
		st.log.WithError(err).Warn("run ledger not updated")
	}
}

// event records a status change in the ledger and sends it to the
// callback.
func (st *run) event(status, stage, message string, code int) {
	e := events.Event{
		RunID:     st.res.Run.ID,
		Timestamp: time.Now(),
		Status:    status,
		Stage:     stage,
		Message:   message,
		Code:      code,
	}
	st.ledger(func(l models.RunRepo) error {
		_, err := l.AddEvent(&st.res.Run, e.PostRunEvent())
		return err
	})
	// A cancelled run still reports how it ended.
	if err := st.events.Send(context.WithoutCancel(st.ctx), e); err != nil {
		st.log.WithError(err).WithField("status", status).Warn("event not delivered")
	}
}

func (st *run) logTimings() {
	fields := log.Fields{}
	st.metrics.Each(func(name string, i interface{}) {
		if t, ok := i.(metrics.Timer); ok && t.Count() > 0 {
			fields[name] = time.Duration(t.Sum()).String()
		}
	})
	st.log.WithFields(fields).Info("stage timings")
}
