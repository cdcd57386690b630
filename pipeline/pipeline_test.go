package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ReconfigureIO/hlsflow/converter"
	"github.com/ReconfigureIO/hlsflow/evaluate"
	"github.com/ReconfigureIO/hlsflow/hlsconfig"
	"github.com/ReconfigureIO/hlsflow/models"
	"github.com/ReconfigureIO/hlsflow/qnn"
	"github.com/ReconfigureIO/hlsflow/report"
	"github.com/ReconfigureIO/hlsflow/service/events"
	"github.com/ReconfigureIO/hlsflow/service/storage/localfile"
	"github.com/ReconfigureIO/hlsflow/synth"
	"github.com/ReconfigureIO/hlsflow/toolchain"
	"github.com/golang/mock/gomock"
	"github.com/rcrowley/go-metrics"
	"gotest.tools/v3/assert"
)

const modelPath = "../qnn/testdata/tiny.json"

// dataset labels random inputs with the reference model's own argmax.
func dataset(t *testing.T, n int) *evaluate.Dataset {
	m, err := qnn.Load(modelPath, qnn.DefaultRegistry)
	assert.NilError(t, err)
	rng := rand.New(rand.NewSource(7))
	ds := &evaluate.Dataset{}
	for i := 0; i < n; i++ {
		x := make([]float64, m.InputSize())
		for j := range x {
			x[j] = rng.Float64()*2 - 1
		}
		y, err := m.Predict(x)
		assert.NilError(t, err)
		label := make([]float64, len(y))
		label[evaluate.Argmax(y)] = 1
		ds.X = append(ds.X, x)
		ds.Y = append(ds.Y, label)
	}
	return ds
}

func synthesizer(t *testing.T, env ...string) *synth.Synthesizer {
	tool, err := filepath.Abs("../fake-vivado/vivado_hls")
	assert.NilError(t, err)
	return &synth.Synthesizer{Runner: toolchain.ExecRunner{}, Tool: tool, Env: env}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Send(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Status)
	}
	return out
}

func TestRun(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	store := t.TempDir()
	ledger := models.NewMockRunRepo(mockCtrl)
	var ledgerStatuses []string
	ledger.EXPECT().Create(gomock.Any()).DoAndReturn(func(run *models.Run) error {
		run.ID = "run1"
		return nil
	})
	ledger.EXPECT().AddEvent(gomock.Any(), gomock.Any()).DoAndReturn(func(run *models.Run, e models.PostRunEvent) (models.RunEvent, error) {
		assert.Check(t, models.CanTransition(run.Status(), e.Status), "%s -> %s", run.Status(), e.Status)
		ev := models.RunEvent{RunID: run.ID, Status: e.Status, Stage: e.Stage}
		run.Events = append(run.Events, ev)
		ledgerStatuses = append(ledgerStatuses, e.Status)
		return ev, nil
	}).Times(4)
	ledger.EXPECT().SetAccuracy(gomock.Any(), 1.0, gomock.Any()).Return(nil)
	ledger.EXPECT().StoreReport(gomock.Any(), gomock.Any()).DoAndReturn(func(run models.Run, r models.Report) error {
		assert.Check(t, run.ID == "run1")
		assert.Check(t, r.LutSummary.Used == 50888)
		return nil
	})
	ledger.EXPECT().SetArtifacts(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	sent := &recorder{}

	runner := &Runner{Ledger: ledger, Events: sent, Storage: localfile.Service(store)}
	res, err := runner.Run(context.Background(), Options{
		ModelPath:   modelPath,
		Convert:     converter.Options{OutputDir: t.TempDir(), QuantizationMode: hlsconfig.ActivationRounding},
		Dataset:     dataset(t, 50),
		Samples:     40,
		Policy:      evaluate.DefaultPolicy,
		Synthesizer: synthesizer(t),
		Flags:       synth.DefaultFlags,
	})
	assert.NilError(t, err)

	expected := []string{models.StatusStarted, models.StatusCompiled, models.StatusSynthesizing, models.StatusCompleted}
	assert.DeepEqual(t, ledgerStatuses, expected)
	assert.DeepEqual(t, sent.statuses(), expected)
	assert.Equal(t, res.Run.Status(), models.StatusCompleted)

	assert.Equal(t, res.Accuracy.Float, 1.0)
	assert.Assert(t, res.Accuracy.Fixed >= 0 && res.Accuracy.Fixed <= 1)
	assert.Equal(t, res.Config.ReuseFactor("fc1", ""), 64)
	assert.Equal(t, res.Manifest.Network.Layers[0].ReuseFactor, 12)
	assert.Equal(t, res.ReportPath, filepath.Join(res.Dir, report.SynthReport))
	assert.Equal(t, res.Summary.LutSummary.Available, 1728000)

	_, err = os.Stat(filepath.Join(store, "runs", "run1", "project.zip"))
	assert.NilError(t, err)
	_, err = os.Stat(filepath.Join(store, "runs", "run1", report.SynthReport))
	assert.NilError(t, err)

	// The project directory is released at the end of the run.
	p, err := converter.Open(res.Dir)
	assert.NilError(t, err)
	assert.NilError(t, p.Close())
}

func TestRunWithoutSynthesis(t *testing.T) {
	res, err := Run(context.Background(), Options{
		ModelPath: modelPath,
		Convert:   converter.Options{OutputDir: t.TempDir()},
	})
	assert.NilError(t, err)
	assert.Assert(t, res.Run.ID != "")
	assert.Assert(t, res.Accuracy == nil)
	assert.Assert(t, res.Report == nil)
	_, err = os.Stat(filepath.Join(res.Dir, converter.BuildScript))
	assert.NilError(t, err)
}

func TestRunReleasesTimers(t *testing.T) {
	var perRun []metrics.Registry
	newRegistry = func() metrics.Registry {
		r := metrics.NewRegistry()
		perRun = append(perRun, r)
		return r
	}
	defer func() { newRegistry = metrics.NewRegistry }()

	shared := metrics.NewRegistry()
	runner := &Runner{Metrics: shared}
	for i := 0; i < 2; i++ {
		_, err := runner.Run(context.Background(), Options{
			ModelPath: modelPath,
			Convert:   converter.Options{OutputDir: t.TempDir()},
		})
		assert.NilError(t, err)
	}

	assert.Equal(t, len(perRun), 2)
	for _, r := range perRun {
		n := 0
		r.Each(func(string, interface{}) { n++ })
		assert.Equal(t, n, 0)
	}
	timer, ok := shared.Get("stage.convert").(metrics.Timer)
	assert.Assert(t, ok)
	assert.Equal(t, timer.Count(), int64(2))
}

func TestRunStageErrors(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name  string
		ctx   context.Context
		opts  func(o *Options)
		stage string
		check func(t *testing.T, err error)
	}{
		{
			name:  "missing model",
			opts:  func(o *Options) { o.ModelPath = "missing.json" },
			stage: StageLoad,
			check: func(t *testing.T, err error) {
				var le *qnn.LoadError
				assert.Assert(t, errors.As(err, &le))
			},
		},
		{
			name:  "unknown override",
			opts:  func(o *Options) { o.Overrides = []hlsconfig.Override{hlsconfig.Set("fc9", hlsconfig.KeyReuseFactor, 4)} },
			stage: StageConfig,
			check: func(t *testing.T, err error) {
				var ue *hlsconfig.UnknownTargetError
				assert.Assert(t, errors.As(err, &ue))
				assert.Equal(t, ue.Scope, "fc9")
			},
		},
		{
			name: "divergence",
			opts: func(o *Options) {
				o.Dataset = dataset(t, 10)
				o.Policy = evaluate.Policy{Tolerance: -1, FailOnDivergence: true}
			},
			stage: StageEvaluate,
			check: func(t *testing.T, err error) {
				assert.Assert(t, errors.Is(err, evaluate.ErrAccuracyDivergence))
			},
		},
		{
			name:  "synthesis",
			opts:  func(o *Options) { o.Synthesizer = synthesizer(t, "FAKE_VIVADO_FAIL=unsupported pointer cast") },
			stage: StageSynth,
			check: func(t *testing.T, err error) {
				var be *toolchain.BuildError
				assert.Assert(t, errors.As(err, &be))
				assert.Equal(t, be.Stage, synth.Stage)
			},
		},
		{
			name: "no report",
			opts: func(o *Options) {
				o.Synthesizer = synthesizer(t)
				o.Flags = synth.Flags{Synth: true}
			},
			stage: StageReport,
			check: func(t *testing.T, err error) {
				var nf *report.NotFoundError
				assert.Assert(t, errors.As(err, &nf))
			},
		},
		{
			name:  "cancelled",
			ctx:   cancelled,
			stage: StageLoad,
			check: func(t *testing.T, err error) {
				assert.Assert(t, errors.Is(err, context.Canceled))
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			opts := Options{
				ModelPath: modelPath,
				Convert:   converter.Options{OutputDir: t.TempDir()},
				Flags:     synth.DefaultFlags,
			}
			if c.opts != nil {
				c.opts(&opts)
			}
			ctx := c.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			sent := &recorder{}
			_, err := (&Runner{Events: sent}).Run(ctx, opts)

			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("expected a StageError, got %v", err)
			}
			assert.Equal(t, se.Stage, c.stage)
			c.check(t, err)

			statuses := sent.statuses()
			assert.Equal(t, statuses[len(statuses)-1], models.StatusErrored)
			sent.mu.Lock()
			assert.Equal(t, sent.events[len(sent.events)-1].Stage, c.stage)
			sent.mu.Unlock()
		})
	}
}
