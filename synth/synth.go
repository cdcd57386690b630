// Package synth drives the HLS backend over a generated project.
package synth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ReconfigureIO/hlsflow/converter"
	"github.com/ReconfigureIO/hlsflow/toolchain"
	log "github.com/sirupsen/logrus"
)

// Stage names the synthesis stage in errors and logs.
const Stage = "synth"

// DefaultTool is the HLS backend executable.
const DefaultTool = "vivado_hls"

// Flags select the steps of build_prj.tcl to run.
type Flags struct {
	Reset bool
	// CSim runs the C simulation.
	CSim  bool
	Synth bool
	CoSim bool
	// Validation compares the co-simulation against the C simulation.
	Validation bool
	Export     bool
	// VSynth runs vendor logic synthesis, which writes the utilisation
	// report.
	VSynth bool
}

// DefaultFlags run C synthesis and logic synthesis.
var DefaultFlags = Flags{Synth: true, VSynth: true}

// Args is the argument string build_prj.tcl parses.
func (f Flags) Args() string {
	steps := []struct {
		name string
		on   bool
	}{
		{"reset", f.Reset},
		{"csim", f.CSim},
		{"synth", f.Synth},
		{"cosim", f.CoSim},
		{"validation", f.Validation},
		{"export", f.Export},
		{"vsynth", f.VSynth},
	}
	args := make([]string, len(steps))
	for i, s := range steps {
		v := 0
		if s.on {
			v = 1
		}
		args[i] = fmt.Sprintf("%s=%d", s.name, v)
	}
	return strings.Join(args, " ")
}

// Synthesizer runs the backend through a toolchain runner.
type Synthesizer struct {
	Runner toolchain.Runner
	// Tool is the backend executable, DefaultTool if empty.
	Tool string
	// Env is added to the backend's environment.
	Env []string
	// Watch logs reports as the backend writes them.
	Watch bool
}

// Synthesize runs the project's build script with flags using the local
// backend. Failures are never retried.
func Synthesize(ctx context.Context, p *converter.Project, flags Flags) (*toolchain.Result, error) {
	s := &Synthesizer{Runner: toolchain.ExecRunner{}, Watch: true}
	return s.Synthesize(ctx, p, flags)
}

// Synthesize runs the project's build script with flags. A failure to
// start, a non-zero exit or a missing project is a *toolchain.BuildError
// carrying the backend's log.
func (s *Synthesizer) Synthesize(ctx context.Context, p *converter.Project, flags Flags) (*toolchain.Result, error) {
	tool := s.Tool
	if tool == "" {
		tool = DefaultTool
	}
	cmd := toolchain.Command{
		Name: tool,
		Args: []string{"-f", converter.BuildScript, flags.Args()},
		Dir:  p.Dir,
		Env:  s.Env,
	}
	if _, err := os.Stat(filepath.Join(p.Dir, converter.BuildScript)); err != nil {
		return nil, &toolchain.BuildError{Stage: Stage, Command: cmd.String(), ExitCode: -1, Err: err}
	}

	l := log.WithFields(log.Fields{
		"stage":   Stage,
		"project": p.Manifest.ProjectName,
		"flags":   flags.Args(),
	})
	if s.Watch {
		w, err := Watch(p.Dir, l)
		if err != nil {
			l.WithError(err).Warn("not watching for reports")
		} else {
			defer w.Close()
		}
	}

	l.Info("synthesis started")
	res, err := toolchain.Check(ctx, s.Runner, Stage, cmd)
	if err != nil {
		return res, err
	}
	l.WithField("duration", res.Duration).Info("synthesis finished")
	return res, nil
}
