package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/ReconfigureIO/hlsflow/pipeline"
	"github.com/ReconfigureIO/hlsflow/queue"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type sweepFlags struct {
	runFlags
	reuseFactors []int
	concurrency  int
}

func sweepCmd() *cobra.Command {
	f := &sweepFlags{}
	cmd := &cobra.Command{
		Use:   "sweep MODEL",
		Short: "Run the workflow once per global reuse factor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return f.sweep(ctx, cmd.OutOrStdout(), args[0])
		},
	}
	f.runFlags.register(cmd)
	fs := cmd.Flags()
	fs.IntSliceVar(&f.reuseFactors, "reuse-factors", []int{1, 2, 4, 8}, "global reuse factors to run")
	fs.IntVar(&f.concurrency, "concurrency", 2, "number of runs at a time")
	return cmd
}

type sweepPoint struct {
	reuse int
	res   *pipeline.Result
	err   error
}

func (f *sweepFlags) sweep(ctx context.Context, w io.Writer, path string) error {
	base, err := f.options()
	if err != nil {
		return err
	}
	base.ModelPath = path
	r, err := f.runner()
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		points []sweepPoint
	)
	q := queue.NewWithMemoryStore(f.concurrency)
	for _, rf := range f.reuseFactors {
		rf := rf
		opts := base
		plan := *base.Plan
		plan.ReuseFactor = rf
		opts.Plan = &plan
		opts.Convert.OutputDir = filepath.Join(base.Convert.OutputDir, "rf"+strconv.Itoa(rf))
		q.Push(queue.Job{
			ID: opts.Convert.OutputDir,
			// Higher reuse factors synthesize faster.
			Weight: rf,
			Execute: func(ctx context.Context) error {
				res, err := r.Run(ctx, opts)
				mu.Lock()
				points = append(points, sweepPoint{reuse: rf, res: res, err: err})
				mu.Unlock()
				return err
			},
		})
	}

	var failed int
	for _, res := range q.Drain(ctx) {
		if res.Err != nil {
			failed++
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].reuse < points[j].reuse })
	printSweep(w, points)
	if failed > 0 {
		return errors.Errorf("%d of %d runs failed", failed, len(f.reuseFactors))
	}
	return nil
}

func printSweep(w io.Writer, points []sweepPoint) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "REUSE\tFIXED ACC\tLUTS\tDSPS\tPROJECT")
	for _, p := range points {
		acc, luts, dsps, dir := "-", "-", "-", "-"
		if p.res != nil {
			dir = p.res.Dir
			if p.res.Accuracy != nil {
				acc = fmt.Sprintf("%.4f", p.res.Accuracy.Fixed)
			}
			if s := p.res.Summary; s != nil {
				luts = strconv.Itoa(s.LutSummary.Used)
				dsps = strconv.Itoa(s.DspBlockSummary.Used)
			}
		}
		if p.err != nil {
			dir = p.err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.reuse, acc, luts, dsps, dir)
	}
	tw.Flush()
}
