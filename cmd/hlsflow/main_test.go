package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ReconfigureIO/hlsflow/converter"
	"github.com/ReconfigureIO/hlsflow/hlsconfig"
	"github.com/spf13/cobra"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

const tinyModel = "../../qnn/testdata/tiny.json"

func execute(args ...string) (string, error) {
	root := &cobra.Command{
		Use:              RootCmd.Use,
		PersistentPreRun: setup,
		SilenceUsage:     true,
		SilenceErrors:    true,
	}
	root.AddCommand(commands()...)
	var out bytes.Buffer
	root.SetOutput(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	out, err := execute("config", tinyModel, "--reuse", "2", "-s", "fc2.Strategy=Latency")
	assert.NilError(t, err)

	cfg, err := hlsconfig.Decode(strings.NewReader(out))
	assert.NilError(t, err)
	assert.Equal(t, cfg.Model.ReuseFactor, 2)
	assert.Equal(t, cfg.LayerName["fc1"].ReuseFactor, 64)
	assert.Equal(t, cfg.LayerName["fc2"].Strategy, hlsconfig.Latency)

	_, err = execute("config", tinyModel, "-s", "fc9.ReuseFactor=2")
	assert.ErrorContains(t, err, "fc9")

	_, err = execute("config", tinyModel, "--granularity", "layer")
	assert.ErrorContains(t, err, "unknown granularity")
}

func TestConvertCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prj")
	out, err := execute("convert", tinyModel, "-o", dir, "--project", "tiny")
	assert.NilError(t, err)

	projectDir := strings.TrimSpace(out)
	_, err = os.Stat(filepath.Join(projectDir, converter.BuildScript))
	assert.NilError(t, err)

	p, err := converter.Open(projectDir)
	assert.NilError(t, err, "the command releases the project")
	assert.Equal(t, p.Manifest.ProjectName, "tiny")
	assert.DeepEqual(t, p.Manifest.QuantizationMode, hlsconfig.ActivationRounding)
	assert.NilError(t, p.Close())

	_, err = execute("convert", tinyModel, "-o", dir, "--rounding", "AP_NOPE")
	assert.Assert(t, err != nil)

	_, err = execute("convert", tinyModel, "-o", dir, "--quantize-layers=", "--rounding", "AP_RND")
	assert.ErrorContains(t, err, "--rounding needs at least one --quantize-layers kind")

	out, err = execute("convert", tinyModel, "-o", filepath.Join(t.TempDir(), "prj"), "--quantize-layers=")
	assert.NilError(t, err)
	p, err = converter.Open(strings.TrimSpace(out))
	assert.NilError(t, err)
	assert.Equal(t, len(p.Manifest.QuantizationMode.Layers), 0)
	assert.NilError(t, p.Close())
}

func TestReportCommand(t *testing.T) {
	out, err := execute("report", "../../report/testdata")
	assert.NilError(t, err)
	assert.Check(t, is.Contains(out, "myproject on xcvu13pflga2577-2"))
	assert.Check(t, is.Contains(out, "50888"))

	raw, err := execute("report", "../../report/testdata", "--raw")
	assert.NilError(t, err)
	assert.Check(t, is.Contains(raw, "| Design       : myproject"))

	_, err = execute("report", t.TempDir())
	assert.Assert(t, err != nil)
}

func TestRunCommand(t *testing.T) {
	vivado, err := filepath.Abs("../../fake-vivado/vivado_hls")
	assert.NilError(t, err)
	t.Setenv("HLSFLOW_VIVADO", vivado)
	t.Setenv("HLSFLOW_STORAGE_DIR", t.TempDir())

	dir := filepath.Join(t.TempDir(), "prj")
	out, err := execute("run", tinyModel, "-o", dir)
	assert.NilError(t, err)
	assert.Check(t, is.Contains(out, "report:"))
	assert.Check(t, is.Contains(out, "artifact: file://"))
	assert.Check(t, is.Contains(out, "50888"))

	out, err = execute("run", tinyModel, "-o", filepath.Join(t.TempDir(), "prj"), "--no-synth", "--publish=false")
	assert.NilError(t, err)
	assert.Check(t, !strings.Contains(out, "report:"))
	assert.Check(t, !strings.Contains(out, "artifact:"))
}

func TestRunCommandBackendFailure(t *testing.T) {
	vivado, err := filepath.Abs("../../fake-vivado/vivado_hls")
	assert.NilError(t, err)
	t.Setenv("HLSFLOW_VIVADO", vivado)
	t.Setenv("FAKE_VIVADO_FAIL", "unsupported pointer cast")

	out, err := execute("run", tinyModel, "-o", filepath.Join(t.TempDir(), "prj"))
	assert.ErrorContains(t, err, "synth")
	assert.Check(t, is.Contains(out, "project:"))
}

func TestVersion(t *testing.T) {
	version = "v1.2.3"
	out, err := execute("version")
	assert.NilError(t, err)
	assert.Equal(t, out, "v1.2.3\n")
}

func TestSweepCommand(t *testing.T) {
	vivado, err := filepath.Abs("../../fake-vivado/vivado_hls")
	assert.NilError(t, err)
	t.Setenv("HLSFLOW_VIVADO", vivado)

	dir := t.TempDir()
	out, err := execute("sweep", tinyModel, "-o", dir, "--reuse-factors", "1,3", "--publish=false")
	assert.NilError(t, err)
	assert.Check(t, is.Contains(out, "REUSE"))
	assert.Check(t, is.Contains(out, filepath.Join(dir, "rf1")))
	assert.Check(t, is.Contains(out, filepath.Join(dir, "rf3")))

	for _, rf := range []string{"rf1", "rf3"} {
		p, err := converter.Open(filepath.Join(dir, rf))
		assert.NilError(t, err)
		assert.NilError(t, p.Close())
	}
}
