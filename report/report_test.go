package report

import (
	"bytes"
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
)

const fixture = "testdata/vivado_synth.rpt"

func parseFixture(t *testing.T) (*Report, []byte) {
	b, err := ioutil.ReadFile(fixture)
	assert.NilError(t, err)
	r, err := Parse(bytes.NewReader(b))
	assert.NilError(t, err)
	return r, b
}

func TestParse(t *testing.T) {
	r, _ := parseFixture(t)

	assert.Equal(t, r.Header.Design, "myproject")
	assert.Equal(t, r.Header.Device, "xcvu13pflga2577-2")
	assert.Equal(t, r.Header.DesignState, "Synthesized")
	assert.Equal(t, r.Header.Command, "report_utilization -file vivado_synth.rpt")
	assert.Assert(t, strings.HasPrefix(r.Header.ToolVersion, "Vivado v.2019.2"))

	var titles []string
	for _, s := range r.Sections {
		if !strings.Contains(s.Number, ".") {
			titles = append(titles, s.Number+". "+s.Title)
		}
	}
	assert.DeepEqual(t, titles, []string{
		"1. CLB Logic",
		"2. BLOCKRAM",
		"3. ARITHMETIC",
		"4. I/O",
		"5. CLOCK",
		"6. ADVANCED",
		"7. CONFIGURATION",
		"8. Primitives",
		"9. Black Boxes",
		"10. Instantiated Netlists",
		"11. SLR Connectivity",
		"12. SLR Connectivity Matrix",
		"13. SLR CLB Logic and Dedicated Block Utilization",
		"14. SLR IO Utilization",
	})

	clb, ok := r.Section("clb logic")
	assert.Assert(t, ok)
	assert.Equal(t, len(clb.Tables), 1)
	assert.DeepEqual(t, clb.Tables[0].Columns, []string{"Site Type", "Used", "Fixed", "Available", "Util%"})
	assert.Equal(t, len(clb.Notes), 1)

	registers, ok := r.Section("Summary of Registers by Type")
	assert.Assert(t, ok)
	assert.Equal(t, registers.Number, "1.1")
	assert.Equal(t, len(registers.Tables[0].Resources), 0)
	assert.DeepEqual(t, registers.Tables[0].Rows[9], []string{"18532", "Yes", "Reset", "-"})

	blackBoxes, ok := r.Section("Black Boxes")
	assert.Assert(t, ok)
	assert.Equal(t, len(blackBoxes.Tables[0].Rows), 0)

	_, ok = r.Section("Timing")
	assert.Assert(t, !ok)
}

func TestResource(t *testing.T) {
	r, _ := parseFixture(t)

	luts, children, ok := r.Resource("CLB LUTs")
	assert.Assert(t, ok)
	assert.Equal(t, luts, Resource{Name: "CLB LUTs", Used: 50888, Fixed: 0, Available: 1728000, Utilisation: 2.94})
	assert.DeepEqual(t, children, []Resource{
		{Name: "LUT as Logic", Depth: 1, Used: 50888, Available: 1728000, Utilisation: 2.94},
		{Name: "LUT as Memory", Depth: 1, Available: 791040},
	})

	cases := []struct {
		category  string
		used      int
		available int
		util      float64
	}{
		{"CLB Registers", 18532, 3456000, 0.54},
		{"CARRY8", 1422, 216000, 0.66},
		{"RAMB36/FIFO", 0, 2688, 0},
		{"URAM", 0, 1280, 0},
		{"DSPs", 32, 12288, 0.26},
		{"BUFGCE", 1, 384, 0.26},
		{"SLR3 <-> SLR2", 0, 23040, 0},
	}
	for _, c := range cases {
		res, _, ok := r.Resource(c.category)
		if !ok {
			t.Errorf("%s not found", c.category)
			continue
		}
		if res.Used != c.used || res.Available != c.available || res.Utilisation != c.util {
			t.Errorf("%s: expected %d/%d %v%%, got %+v", c.category, c.used, c.available, c.util, res)
		}
	}

	_, _, ok = r.Resource("LUT2")
	assert.Assert(t, !ok, "primitives are not resources")
}

func TestResourceBelowPrecision(t *testing.T) {
	const text = `3. ARITHMETIC
-------------

+----------------+------+-------+-----------+-------+
|   Site Type    | Used | Fixed | Available | Util% |
+----------------+------+-------+-----------+-------+
| DSPs           |    1 |     0 |     12288 | <0.01 |
|   DSP48E2 only |    1 |       |           |       |
+----------------+------+-------+-----------+-------+
`
	r, err := Parse(strings.NewReader(text))
	assert.NilError(t, err)

	dsps, children, ok := r.Resource("DSPs")
	assert.Assert(t, ok)
	assert.Equal(t, dsps, Resource{Name: "DSPs", Used: 1, Available: 12288, Utilisation: 0.01, Below: true})
	assert.DeepEqual(t, children, []Resource{{Name: "DSP48E2 only", Depth: 1, Used: 1}})

	s := Summarise(r)
	assert.Equal(t, s.DspBlockSummary.Used, 1)
}

func TestWriteTo(t *testing.T) {
	r, original := parseFixture(t)
	var b bytes.Buffer
	n, err := r.WriteTo(&b)
	assert.NilError(t, err)
	assert.Equal(t, n, int64(len(original)))
	assert.Assert(t, bytes.Equal(b.Bytes(), original))
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name     string
		report   string
		expected string
	}{
		{"empty", "", "no report sections"},
		{"unclosed", "1. CLB Logic\n------------\n+--+\n| a |\n+--+\n| 1 |\n", "not closed"},
		{"cells", "1. CLB Logic\n------------\n+--+\n| a | b |\n+--+\n| 1 |\n+--+\n", "1 cells under 2 columns"},
		{"number", "1. DSP\n------\n+--+\n| Site Type | Used | Available | Util% |\n+--+\n| DSPs | many | 10 | 1.0 |\n+--+\n", `row "DSPs"`},
		{"util", "1. DSP\n------\n+--+\n| Site Type | Used | Available | Util% |\n+--+\n| DSPs | 1 | 10 | <x |\n+--+\n", `row "DSPs"`},
	}
	for _, c := range cases {
		_, err := Parse(strings.NewReader(c.report))
		assert.ErrorContains(t, err, c.expected, c.name)
	}
}

func TestFind(t *testing.T) {
	report, err := ioutil.ReadFile(fixture)
	assert.NilError(t, err)

	dir := fs.NewDir(t, "project")
	defer dir.Remove()

	_, err = Find(dir.Path())
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Dir != dir.Path() {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	_, _, err = Load(filepath.Join(dir.Path(), "missing"))
	assert.Assert(t, errors.As(err, &nf))

	nested := filepath.Join(dir.Path(), "myproject_prj", "solution1", "syn", "report")
	assert.NilError(t, os.MkdirAll(nested, 0755))
	assert.NilError(t, ioutil.WriteFile(filepath.Join(nested, "myproject_csynth_util.rpt"), report, 0644))
	path, err := Find(dir.Path())
	assert.NilError(t, err)
	assert.Equal(t, path, filepath.Join(nested, "myproject_csynth_util.rpt"))

	assert.NilError(t, ioutil.WriteFile(filepath.Join(nested, "myproject_utilization_synth.rpt"), report, 0644))
	path, err = Find(dir.Path())
	assert.NilError(t, err)
	assert.Equal(t, path, filepath.Join(nested, "myproject_utilization_synth.rpt"))

	assert.NilError(t, ioutil.WriteFile(filepath.Join(dir.Path(), SynthReport), report, 0644))
	r, path, err := Load(dir.Path())
	assert.NilError(t, err)
	assert.Equal(t, path, filepath.Join(dir.Path(), SynthReport))
	assert.Equal(t, r.Header.Design, "myproject")
}

func TestSummarise(t *testing.T) {
	r, _ := parseFixture(t)
	s := Summarise(r)

	assert.Equal(t, s.ModuleName, "myproject")
	assert.Equal(t, s.PartName, "xcvu13pflga2577-2")
	assert.Equal(t, s.LutSummary.Used, 50888)
	assert.Equal(t, s.LutSummary.Available, 1728000)
	assert.Equal(t, s.LutSummary.Utilisation, float32(2.94))
	assert.Equal(t, s.LutSummary.Detail["LUT as Logic"].Used, 50888)
	assert.Equal(t, s.RegSummary.Detail["Register as Flip Flop"].Used, 18532)
	assert.Equal(t, len(s.BlockRamSummary.Detail), 2)
	assert.Equal(t, s.UltraRamSummary.Available, 1280)
	assert.Equal(t, s.DspBlockSummary.Used, 32)

	expected := (2.94 + 0.54 + 0 + 0 + 0.26) / 5
	if math.Abs(float64(s.WeightedAverage.Utilisation)-expected) > 1e-4 {
		t.Errorf("expected average %v, got %v", expected, s.WeightedAverage.Utilisation)
	}
}
