// Package report reads the utilisation report the synthesis backend writes
// into a project directory.
package report

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Report is a parsed utilisation report. It keeps the original text, which
// WriteTo reproduces exactly.
type Report struct {
	Header   Header
	Sections []*Section

	raw []byte
}

// Header is the block at the top of the report.
type Header struct {
	ToolVersion string
	Date        string
	Host        string
	Command     string
	Design      string
	Device      string
	DesignState string
	// Fields holds every header line, including the ones above.
	Fields map[string]string
}

func (h *Header) set(key, value string) {
	if h.Fields == nil {
		h.Fields = map[string]string{}
	}
	h.Fields[key] = value
	switch key {
	case "Tool Version":
		h.ToolVersion = value
	case "Date":
		h.Date = value
	case "Host":
		h.Host = value
	case "Command":
		h.Command = value
	case "Design":
		h.Design = value
	case "Device":
		h.Device = value
	case "Design State":
		h.DesignState = value
	}
}

// Section is a numbered section, e.g. "1. CLB Logic".
type Section struct {
	Number string
	Title  string
	Tables []*Table
	// Notes are the non-table lines, such as footnotes.
	Notes []string
}

// Table is a fixed-width table. Rows hold trimmed cells. Tables with
// Used, Available and Util% columns also have their rows typed as
// Resources.
type Table struct {
	Columns   []string
	Rows      [][]string
	Resources []Resource

	depths []int
}

// Resource is one row of a utilisation table. Depth is the row's
// indentation level under its parent category. Blank cells are zero.
// Vivado prints Util% below its precision as "<0.01"; such rows keep the
// bound in Utilisation and set Below.
type Resource struct {
	Name        string  `json:"name"`
	Depth       int     `json:"depth"`
	Used        int     `json:"used"`
	Fixed       int     `json:"fixed"`
	Available   int     `json:"available"`
	Utilisation float64 `json:"utilisation"`
	Below       bool    `json:"below,omitempty"`
}

var (
	sectionRE = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(\S.*?)\s*$`)
	headerRE  = regexp.MustCompile(`^\|\s*([^:]+?)\s*:\s*(.*?)\s*$`)
)

// Parse reads a report.
func Parse(r io.Reader) (*Report, error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	rep := &Report{raw: raw}
	lines := strings.Split(string(raw), "\n")

	var (
		section *Section
		table   *Table
		borders int
	)
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if m := sectionRE.FindStringSubmatch(line); m != nil && i+1 < len(lines) && isRule(lines[i+1], len(line)) {
			if table != nil {
				return nil, fmt.Errorf("line %d: table in section %s is not closed", i+1, section.Number)
			}
			section = &Section{Number: m[1], Title: m[2]}
			rep.Sections = append(rep.Sections, section)
			i++
			continue
		}
		if section == nil {
			if m := headerRE.FindStringSubmatch(line); m != nil {
				rep.Header.set(m[1], m[2])
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "+-"):
			if table == nil {
				table = &Table{}
				section.Tables = append(section.Tables, table)
				borders = 0
			}
			borders++
			if borders == 3 {
				if err := table.typeResources(); err != nil {
					return nil, errors.Wrapf(err, "section %s %s", section.Number, section.Title)
				}
				table = nil
			}
		case strings.HasPrefix(line, "|") && table != nil:
			cells, depth := splitRow(line)
			if borders == 1 {
				table.Columns = cells
			} else {
				if len(cells) != len(table.Columns) {
					return nil, fmt.Errorf("line %d: %d cells under %d columns", i+1, len(cells), len(table.Columns))
				}
				table.Rows = append(table.Rows, cells)
				table.depths = append(table.depths, depth)
			}
		case table == nil && strings.TrimSpace(line) != "":
			section.Notes = append(section.Notes, line)
		}
	}
	if table != nil {
		return nil, fmt.Errorf("table in section %s is not closed", section.Number)
	}
	if len(rep.Sections) == 0 {
		return nil, errors.New("no report sections found")
	}
	return rep, nil
}

func isRule(line string, n int) bool {
	line = strings.TrimRight(line, "\r")
	return len(line) == n && strings.Trim(line, "-") == ""
}

// splitRow returns the trimmed cells of a table row and the indentation of
// its first cell, two spaces per level.
func splitRow(line string) ([]string, int) {
	line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	depth := 0
	if len(parts) > 0 {
		first := strings.TrimPrefix(parts[0], " ")
		depth = (len(first) - len(strings.TrimLeft(first, " "))) / 2
	}
	return cells, depth
}

func (t *Table) column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *Table) typeResources() error {
	used, fixed, avail, util := t.column("Used"), t.column("Fixed"), t.column("Available"), t.column("Util%")
	if used < 0 || avail < 0 || util < 0 {
		return nil
	}
	for i, row := range t.Rows {
		res := Resource{Name: strings.TrimRight(row[0], "*"), Depth: t.depths[i]}
		for _, c := range []struct {
			idx int
			dst *int
		}{{used, &res.Used}, {fixed, &res.Fixed}, {avail, &res.Available}} {
			if c.idx < 0 || row[c.idx] == "" {
				continue
			}
			v, err := strconv.Atoi(row[c.idx])
			if err != nil {
				return errors.Wrapf(err, "row %q", row[0])
			}
			*c.dst = v
		}
		if cell := row[util]; cell != "" {
			if strings.HasPrefix(cell, "<") {
				res.Below = true
				cell = strings.TrimSpace(cell[1:])
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return errors.Wrapf(err, "row %q", row[0])
			}
			res.Utilisation = v
		}
		t.Resources = append(t.Resources, res)
	}
	return nil
}

// Resource returns the first row named category, e.g. "CLB LUTs", and the
// rows nested under it.
func (r *Report) Resource(category string) (Resource, []Resource, bool) {
	for _, s := range r.Sections {
		for _, t := range s.Tables {
			for i, res := range t.Resources {
				if res.Name != category {
					continue
				}
				var children []Resource
				for _, c := range t.Resources[i+1:] {
					if c.Depth <= res.Depth {
						break
					}
					if c.Depth == res.Depth+1 {
						children = append(children, c)
					}
				}
				return res, children, true
			}
		}
	}
	return Resource{}, nil, false
}

// Section returns the section titled title, ignoring case.
func (r *Report) Section(title string) (*Section, bool) {
	for _, s := range r.Sections {
		if strings.EqualFold(s.Title, title) {
			return s, true
		}
	}
	return nil, false
}

// WriteTo writes the report text exactly as it was read.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	return bytes.NewReader(r.raw).WriteTo(w)
}
