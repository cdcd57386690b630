package main_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

const buildScript = "open_project -reset fixture_prj\nset_top fixture\n"

type context struct {
	tool string
}

func TestFakeVivado(t *testing.T) {
	tool, err := filepath.Abs("vivado_hls")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context{tool: tool}
	t.Run("vivado_hls", func(t *testing.T) {
		t.Run("synth", ctx.testSynth)
		t.Run("vsynth", ctx.testVSynth)
		t.Run("fail", ctx.testFail)
		t.Run("missing-script", ctx.testMissingScript)
	})
}

func (c context) project(t *testing.T) string {
	dir, err := ioutil.TempDir("", "fake-vivado")
	if err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(dir, "build_prj.tcl"), []byte(buildScript), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func (c context) run(dir string, env []string, args ...string) ([]byte, error) {
	cmd := exec.Command(c.tool, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

func (c context) testSynth(t *testing.T) {
	t.Parallel()
	dir := c.project(t)
	defer os.RemoveAll(dir)

	output, err := c.run(dir, nil, "-f", "build_prj.tcl", "csim=0 synth=1 vsynth=0")
	if err != nil {
		t.Fatalf("%v: %s", err, output)
	}
	if !bytes.Contains(output, []byte("***** synth *****")) || bytes.Contains(output, []byte("***** csim *****")) {
		t.Errorf("unexpected steps in output:\n%s", output)
	}
	if _, err := os.Stat(filepath.Join(dir, "fixture_prj/solution1/syn/report/fixture_csynth.rpt")); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "vivado_synth.rpt")); err == nil {
		t.Error("did not expect a utilisation report without vsynth")
	}
}

func (c context) testVSynth(t *testing.T) {
	t.Parallel()
	dir := c.project(t)
	defer os.RemoveAll(dir)

	output, err := c.run(dir, nil, "-f", "build_prj.tcl", "synth=1 vsynth=1")
	if err != nil {
		t.Fatalf("%v: %s", err, output)
	}
	report, err := ioutil.ReadFile(filepath.Join(dir, "vivado_synth.rpt"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(report, []byte("| CLB LUTs*")) {
		t.Error("utilisation report is not the fixture")
	}
}

func (c context) testFail(t *testing.T) {
	t.Parallel()
	dir := c.project(t)
	defer os.RemoveAll(dir)

	output, err := c.run(dir, []string{"FAKE_VIVADO_FAIL=unsupported pointer cast"}, "-f", "build_prj.tcl", "synth=1")
	if err == nil {
		t.Fatal("expected the run to fail")
	}
	if !bytes.Contains(output, []byte("ERROR: [SYNCHK 200-61] unsupported pointer cast")) {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func (c context) testMissingScript(t *testing.T) {
	t.Parallel()
	dir, err := ioutil.TempDir("", "fake-vivado")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	output, err := c.run(dir, nil, "-f", "build_prj.tcl", "synth=1")
	if err == nil {
		t.Fatal("expected the run to fail")
	}
	if !bytes.Contains(output, []byte("Cannot find the script")) {
		t.Errorf("unexpected output:\n%s", output)
	}
}
