package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/ReconfigureIO/hlsflow/converter"
	"github.com/ReconfigureIO/hlsflow/evaluate"
	"github.com/ReconfigureIO/hlsflow/hlsconfig"
	"github.com/ReconfigureIO/hlsflow/models"
	"github.com/ReconfigureIO/hlsflow/pipeline"
	"github.com/ReconfigureIO/hlsflow/service/events"
	"github.com/ReconfigureIO/hlsflow/toolchain"
	"github.com/spf13/cobra"
)

type runFlags struct {
	model modelFlags
	synth synthFlags

	images  string
	labels  string
	samples int
	noSynth bool
	ledger  bool
	publish bool
}

func runCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run MODEL",
		Short: "Convert, evaluate and synthesize a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return f.run(ctx, cmd.OutOrStdout(), args[0])
		},
	}
	f.register(cmd)
	return cmd
}

func (f *runFlags) register(cmd *cobra.Command) {
	f.model.register(cmd)
	f.synth.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&f.images, "images", "", "IDX images to evaluate accuracy on")
	fs.StringVar(&f.labels, "labels", "", "IDX labels of --images")
	fs.IntVar(&f.samples, "samples", 1000, "number of samples to evaluate, all if not positive")
	fs.BoolVar(&f.noSynth, "no-synth", false, "stop after evaluation")
	fs.BoolVar(&f.ledger, "ledger", false, "record the run in the database")
	fs.BoolVar(&f.publish, "publish", true, "upload the project if storage is configured")
}

func (f *runFlags) options() (pipeline.Options, error) {
	overrides, err := f.model.parseOverrides()
	if err != nil {
		return pipeline.Options{}, err
	}
	convert, err := f.model.convertOptions()
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{
		Granularity: hlsconfig.Granularity(f.model.granularity),
		Plan:        f.model.plan(),
		Overrides:   overrides,
		Convert:     convert,
		Toolchain:   converter.Toolchain{Runner: toolchain.ExecRunner{}, CXX: conf.Toolchain.CXX},
		Samples:     f.samples,
		Policy:      conf.Policy,
		Flags:       f.synth.flags,
	}
	if f.images != "" {
		opts.Dataset, err = evaluate.LoadIDX(f.images, f.labels, evaluate.DefaultClasses)
		if err != nil {
			return opts, err
		}
	}
	if !f.noSynth {
		opts.Synthesizer, err = synthesizer(conf)
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func (f *runFlags) runner() (*pipeline.Runner, error) {
	r := &pipeline.Runner{}
	if f.ledger {
		db, err := setupDB()
		if err != nil {
			return nil, err
		}
		r.Ledger = models.RunDataSource(db)
	}
	if conf.CallbackURL != "" {
		r.Events = events.NewCallbackService(conf.CallbackURL, "")
	}
	if f.publish {
		r.Storage = storageService(conf)
	}
	return r, nil
}

func (f *runFlags) run(ctx context.Context, w io.Writer, path string) error {
	opts, err := f.options()
	if err != nil {
		return err
	}
	opts.ModelPath = path
	r, err := f.runner()
	if err != nil {
		return err
	}

	res, err := r.Run(ctx, opts)
	if res != nil {
		printResult(w, res)
	}
	return err
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "run:      %s\n", res.Run.ID)
	if res.Dir != "" {
		fmt.Fprintf(w, "project:  %s\n", res.Dir)
	}
	if acc := res.Accuracy; acc != nil {
		fmt.Fprintf(w, "accuracy: float %.4f, fixed %.4f\n", acc.Float, acc.Fixed)
	}
	if res.ReportPath != "" {
		fmt.Fprintf(w, "report:   %s\n", res.ReportPath)
	}
	if res.Artifacts.Project != "" {
		fmt.Fprintf(w, "artifact: %s\n", res.Artifacts.Project)
	}
	if res.Summary != nil {
		fmt.Fprintln(w)
		printSummary(w, *res.Summary)
	}
}

// signalContext is cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
