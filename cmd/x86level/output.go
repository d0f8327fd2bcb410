package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leodido/x86level"
)

type outputFormat int

const (
	formatText outputFormat = iota
	formatJSON
	formatYAML
)

var formatIdentifierMap = map[outputFormat][]string{
	formatText: {"text"},
	formatJSON: {"json"},
	formatYAML: {"yaml", "yml"},
}

var sourceIdentifierMap = func() map[x86level.Source][]string {
	ids := map[x86level.Source][]string{}
	for _, s := range []x86level.Source{x86level.SourceProcfs, x86level.SourceCPUID} {
		ids[s] = []string{s.String()}
	}
	return ids
}()

func parseOutputFormat(input string) (outputFormat, error) {
	name := strings.TrimSpace(input)
	for f, ids := range formatIdentifierMap {
		for _, id := range ids {
			if strings.EqualFold(id, name) {
				return f, nil
			}
		}
	}
	return formatText, fmt.Errorf("unknown format: %q (available: text, json, yaml)", input)
}

type levelReport struct {
	Name      string   `json:"name" yaml:"name"`
	Supported bool     `json:"supported" yaml:"supported"`
	Missing   []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

type probeReport struct {
	Source      string        `json:"source" yaml:"source"`
	Path        string        `json:"path,omitempty" yaml:"path,omitempty"`
	SourceError string        `json:"source_error,omitempty" yaml:"source_error,omitempty"`
	Kernel      string        `json:"kernel,omitempty" yaml:"kernel,omitempty"`
	CPU         string        `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Highest     string        `json:"highest,omitempty" yaml:"highest,omitempty"`
	Supported   []string      `json:"supported" yaml:"supported"`
	Levels      []levelReport `json:"levels" yaml:"levels"`
	Flags       []string      `json:"flags" yaml:"flags"`
}

func newProbeReport(hf *x86level.HostFeatures) probeReport {
	r := probeReport{
		Source:    hf.Source.String(),
		Path:      hf.Path,
		Kernel:    hf.KernelVersion,
		CPU:       hf.CPUBrand,
		Supported: []string{},
		Flags:     hf.Flags.Sorted(),
	}
	if hf.SourceError != nil {
		r.SourceError = hf.SourceError.Error()
	}
	if highest, ok := hf.Highest(); ok {
		r.Highest = highest.String()
	}
	for _, l := range hf.Levels {
		r.Supported = append(r.Supported, l.String())
	}
	for _, l := range x86level.LevelValues() {
		lr := levelReport{Name: l.String()}
		missing, err := x86level.Missing(hf.Flags, l)
		if err != nil {
			panic(err)
		}
		lr.Supported = len(missing) == 0
		for _, f := range missing {
			lr.Missing = append(lr.Missing, f.String())
		}
		r.Levels = append(r.Levels, lr)
	}
	return r
}

type checkReport struct {
	OK      bool     `json:"ok"`
	Level   string   `json:"level"`
	Missing []string `json:"missing,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

func newCheckReport(l x86level.Level, err error) checkReport {
	r := checkReport{OK: err == nil, Level: l.String()}
	if err == nil {
		return r
	}
	var le *x86level.LevelError
	if errors.As(err, &le) {
		for _, f := range le.Missing {
			r.Missing = append(r.Missing, f.String())
		}
	}
	r.Reason = err.Error()
	return r
}
