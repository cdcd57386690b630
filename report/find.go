package report

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// SynthReport is the report written by the project's vivado_synth.tcl.
const SynthReport = "vivado_synth.rpt"

// NotFoundError is returned when a project has no utilisation report,
// typically because synthesis has not run yet.
type NotFoundError struct {
	Dir string
}

func (e *NotFoundError) Error() string {
	return "no utilisation report in " + e.Dir
}

// Find returns the path of the utilisation report in the project at dir:
// vivado_synth.rpt, else a *_utilization_synth.rpt, else any *util*.rpt
// below dir.
func Find(dir string) (string, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", &NotFoundError{Dir: dir}
	}
	path := filepath.Join(dir, SynthReport)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	var synth, util []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		name := info.Name()
		switch {
		case strings.HasSuffix(name, "_utilization_synth.rpt"):
			synth = append(synth, path)
		case strings.HasSuffix(name, ".rpt") && strings.Contains(name, "util"):
			util = append(util, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	for _, found := range [][]string{synth, util} {
		if len(found) > 0 {
			sort.Strings(found)
			return found[0], nil
		}
	}
	return "", &NotFoundError{Dir: dir}
}

// Load finds and parses the utilisation report of the project at dir.
func Load(dir string) (*Report, string, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	r, err := Parse(f)
	if err != nil {
		return nil, "", errors.Wrap(err, path)
	}
	return r, path, nil
}
