package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ReconfigureIO/hlsflow/emulator"
	"github.com/ReconfigureIO/hlsflow/hlsconfig"
	"github.com/ReconfigureIO/hlsflow/toolchain"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotCompiled is returned by Predict before the project was compiled.
var ErrNotCompiled = errors.New("project has not been compiled")

// Project is a generated project directory.
type Project struct {
	Dir      string
	Manifest Manifest
	Config   *hlsconfig.Config

	lock *dirLock
	net  *emulator.Network
}

// Toolchain is what Compile needs to build the project's native library.
// With no CXX only the emulation is compiled.
type Toolchain struct {
	Runner toolchain.Runner
	CXX    string
}

// Open locks and loads the project previously generated in dir.
func Open(dir string) (*Project, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	lock, err := acquireLock(dir)
	if err != nil {
		return nil, err
	}
	p, err := open(dir)
	if err != nil {
		lock.release()
		return nil, err
	}
	p.lock = lock
	return p, nil
}

func open(dir string) (*Project, error) {
	p := &Project{Dir: dir}
	f, err := os.Open(p.path(ManifestFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&p.Manifest); err != nil {
		return nil, fmt.Errorf("decode %s: %v", p.path(ManifestFile), err)
	}
	if p.Config, err = hlsconfig.Read(p.path(ConfigFile)); err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the project directory.
func (p *Project) Close() error {
	err := p.lock.release()
	p.lock = nil
	return err
}

func (p *Project) path(name string) string {
	return filepath.Join(p.Dir, name)
}

// EmulationPath is where Compile writes the compiled network.
func (p *Project) EmulationPath() string {
	return p.path(filepath.Join(FirmwareDir, p.Manifest.ProjectName+".emu.json"))
}

// Compile builds the project's fixed-point emulation, and its native library
// when a compiler is configured. Failures are reported as a
// *toolchain.BuildError.
func (p *Project) Compile(ctx context.Context, tc Toolchain) error {
	l := log.WithFields(log.Fields{"project": p.Manifest.ProjectName, "dir": p.Dir})

	spec := p.Manifest.Network
	spec.Layers = append([]emulator.LayerSpec(nil), spec.Layers...)
	for i := range spec.Layers {
		ls := &spec.Layers[i]
		if ls.Kind != emulator.KindDense {
			continue
		}
		var err error
		if ls.Kernel, err = readWeights(p.path(ls.WeightFile)); err != nil {
			return compileError(err)
		}
		if ls.Bias, err = readWeights(p.path(ls.BiasFile)); err != nil {
			return compileError(err)
		}
	}
	net, err := emulator.Build(&spec)
	if err != nil {
		return compileError(err)
	}
	if err := emulator.WriteSpec(p.EmulationPath(), &spec); err != nil {
		return compileError(err)
	}
	p.net = net
	l.WithField("emulation", p.EmulationPath()).Info("emulation compiled")

	if tc.CXX == "" {
		return nil
	}
	cmd := toolchain.Command{
		Name: "./" + BuildLib,
		Dir:  p.Dir,
		Env:  []string{"CXX=" + tc.CXX},
	}
	if _, err := toolchain.Check(ctx, tc.Runner, "compile", cmd); err != nil {
		return err
	}
	l.Info("native library compiled")
	return nil
}

func compileError(err error) error {
	return &toolchain.BuildError{Stage: "compile", Err: err}
}

// Predict runs the compiled emulation on one sample.
func (p *Project) Predict(x []float64) ([]float64, error) {
	if p.net == nil {
		spec, err := emulator.ReadSpec(p.EmulationPath())
		if os.IsNotExist(errors.Cause(err)) {
			return nil, ErrNotCompiled
		}
		if err != nil {
			return nil, err
		}
		if p.net, err = emulator.Build(spec); err != nil {
			return nil, err
		}
	}
	return p.net.Predict(x)
}
