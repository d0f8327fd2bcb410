package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leodido/x86level"
	"gopkg.in/yaml.v3"
)

var (
	baselineTokens = []string{"cmov", "cx8", "fpu", "fxsr", "mmx", "syscall", "sse", "sse2"}
	v2Tokens       = []string{"cx16", "lahf_lm", "popcnt", "sse3", "ssse3", "sse4_1", "sse4_2"}
	v3Tokens       = []string{"avx", "avx2", "bmi1", "bmi2", "f16c", "fma", "abm", "movbe", "xsave"}
	v4Tokens       = []string{"avx512bw", "avx512cd", "avx512dq", "avx512f", "avx512vl"}
)

func fakeProber(groups ...[]string) prober {
	var tokens []string
	for _, g := range groups {
		tokens = append(tokens, g...)
	}
	return func(_ ...x86level.ProbeOption) (*x86level.HostFeatures, error) {
		flags := x86level.NewFlagSet(tokens...)
		return &x86level.HostFeatures{
			Source: x86level.SourceProcfs,
			Path:   x86level.DefaultCPUInfoPath,
			Flags:  flags,
			Levels: x86level.SupportedLevels(flags),
		}, nil
	}
}

func execute(t *testing.T, p prober, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := rootCmd(p)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	// cobra falls back to os.Args on nil.
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRoot(t *testing.T) {
	tests := []struct {
		name  string
		probe prober
		args  []string
		want  string
	}{
		{"baseline host", fakeProber(baselineTokens), nil, "x86-64\n"},
		{"v2 host, all", fakeProber(baselineTokens, v2Tokens), []string{"--all"}, "x86-64 x86-64-v2\n"},
		{"v2 host, short flag", fakeProber(baselineTokens, v2Tokens), []string{"-a"}, "x86-64 x86-64-v2\n"},
		{"v4 host", fakeProber(baselineTokens, v2Tokens, v3Tokens, v4Tokens), nil, "x86-64-v4\n"},
		{"v3 host", fakeProber(baselineTokens, v2Tokens, v3Tokens), nil, "x86-64-v3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := execute(t, tt.probe, tt.args...)
			if err != nil {
				t.Fatalf("Execute() error = %v (stderr %q)", err, stderr)
			}
			if stdout != tt.want {
				t.Errorf("stdout = %q, want %q", stdout, tt.want)
			}
		})
	}
}

func TestRoot_NoLevel(t *testing.T) {
	stdout, stderr, err := execute(t, fakeProber())
	if !errors.Is(err, x86level.ErrNoLevelSupported) {
		t.Fatalf("Execute() error = %v, want ErrNoLevelSupported", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	if !strings.Contains(stderr, "no x86-64 microarchitecture level supported") {
		t.Errorf("stderr = %q, missing diagnostic", stderr)
	}
}

func TestRoot_MissingCPUInfo(t *testing.T) {
	p := func(opts ...x86level.ProbeOption) (*x86level.HostFeatures, error) {
		return x86level.ProbeWith(append(opts, x86level.WithCPUInfoPath("/nonexistent/cpuinfo"))...)
	}

	_, stderr, err := execute(t, p)
	if !errors.Is(err, x86level.ErrNoLevelSupported) {
		t.Fatalf("Execute() error = %v, want ErrNoLevelSupported", err)
	}
	if !strings.Contains(stderr, "cpu flags unavailable") {
		t.Errorf("stderr = %q, missing warning", stderr)
	}
}

func TestRoot_RejectsArgs(t *testing.T) {
	if _, _, err := execute(t, fakeProber(baselineTokens), "extra"); err == nil {
		t.Fatal("Execute() expected error for positional argument")
	}
}

func writeCPUInfo(t *testing.T, groups ...[]string) string {
	t.Helper()
	var b strings.Builder
	for i, g := range groups {
		b.WriteString("processor\t: ")
		b.WriteString(string(rune('0' + i)))
		b.WriteString("\nflags\t\t: ")
		b.WriteString(strings.Join(g, " "))
		b.WriteString("\n\n")
	}
	path := filepath.Join(t.TempDir(), "cpuinfo")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProbe_JSON(t *testing.T) {
	path := writeCPUInfo(t, baselineTokens, v2Tokens)

	stdout, stderr, err := execute(t, x86level.ProbeWith, "probe", "--cpuinfo", path, "--format", "json")
	if err != nil {
		t.Fatalf("Execute() error = %v (stderr %q)", err, stderr)
	}

	var got probeReport
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if got.Source != "procfs" || got.Path != path {
		t.Errorf("source = %q (%q), want procfs (%q)", got.Source, got.Path, path)
	}
	if got.Highest != "x86-64-v2" {
		t.Errorf("highest = %q, want x86-64-v2", got.Highest)
	}
	if diff := cmp.Diff([]string{"x86-64", "x86-64-v2"}, got.Supported); diff != "" {
		t.Errorf("supported mismatch (-want +got):\n%s", diff)
	}
	if len(got.Levels) != 4 {
		t.Fatalf("got %d levels, want 4", len(got.Levels))
	}
	if got.Levels[3].Supported || len(got.Levels[3].Missing) != 5 {
		t.Errorf("v4 level = %+v, want unsupported with 5 missing", got.Levels[3])
	}
	if len(got.Flags) != len(baselineTokens)+len(v2Tokens) {
		t.Errorf("got %d flags, want %d", len(got.Flags), len(baselineTokens)+len(v2Tokens))
	}
}

func TestProbe_YAML(t *testing.T) {
	path := writeCPUInfo(t, baselineTokens)

	stdout, stderr, err := execute(t, x86level.ProbeWith, "probe", "--cpuinfo", path, "-f", "YAML")
	if err != nil {
		t.Fatalf("Execute() error = %v (stderr %q)", err, stderr)
	}

	var got probeReport
	if err := yaml.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid YAML %q: %v", stdout, err)
	}
	if got.Highest != "x86-64" {
		t.Errorf("highest = %q, want x86-64", got.Highest)
	}
	if got.Levels[1].Name != "x86-64-v2" || got.Levels[1].Supported {
		t.Errorf("v2 level = %+v", got.Levels[1])
	}
}

func TestProbe_Text(t *testing.T) {
	path := writeCPUInfo(t, baselineTokens, v2Tokens, v3Tokens)

	stdout, _, err := execute(t, x86level.ProbeWith, "probe", "--cpuinfo", path)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"Source: procfs", "x86-64-v3: yes", "Highest level: x86-64-v3"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestProbe_Verbose(t *testing.T) {
	path := writeCPUInfo(t, baselineTokens)

	_, stderr, err := execute(t, x86level.ProbeWith, "probe", "--cpuinfo", path, "--verbose")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(stderr, "reading cpu flags") {
		t.Errorf("stderr = %q, want debug logs", stderr)
	}
}

func TestProbe_InvalidFormat(t *testing.T) {
	if _, _, err := execute(t, x86level.ProbeWith, "probe", "--format", "xml"); err == nil {
		t.Fatal("Execute() expected error for unknown format")
	}
}

func TestProbe_CPUInfoRequiresProcfs(t *testing.T) {
	path := writeCPUInfo(t, baselineTokens)
	p := func(_ ...x86level.ProbeOption) (*x86level.HostFeatures, error) {
		t.Error("prober called despite conflicting flags")
		return nil, nil
	}

	_, _, err := execute(t, p, "probe", "--source", "cpuid", "--cpuinfo", path)
	if err == nil {
		t.Fatal("Execute() expected error for --cpuinfo with the cpuid source")
	}
	if !strings.Contains(err.Error(), "--cpuinfo cannot be used with --source cpuid") {
		t.Errorf("error = %q", err)
	}
}

// syncBuffer records whether the logger flushed it.
type syncBuffer struct {
	bytes.Buffer
	synced int
}

func (b *syncBuffer) Sync() error {
	b.synced++
	return nil
}

func TestCommands_SyncLogger(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"root", []string{}},
		{"probe", []string{"probe"}},
		{"check", []string{"check", "x86-64"}},
		{"version", []string{"version"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			stderr := &syncBuffer{}
			root := rootCmd(fakeProber(baselineTokens))
			root.SetOut(&stdout)
			root.SetErr(stderr)
			root.SetArgs(tt.args)

			if err := root.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if stderr.synced == 0 {
				t.Error("logger was not synced")
			}
		})
	}
}

func TestCheck(t *testing.T) {
	p := fakeProber(baselineTokens, v2Tokens)

	t.Run("supported", func(t *testing.T) {
		stdout, _, err := execute(t, p, "check", "x86-64-v2")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if stdout != "OK: x86-64-v2 supported\n" {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		_, stderr, err := execute(t, p, "check", "X86-64-V3")
		var le *x86level.LevelError
		if !errors.As(err, &le) {
			t.Fatalf("Execute() error = %v, want *LevelError", err)
		}
		if le.Level != x86level.LevelV3 {
			t.Errorf("Level = %s, want x86-64-v3", le.Level)
		}
		if !strings.Contains(stderr, "missing AVX, AVX2") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("unknown level", func(t *testing.T) {
		_, _, err := execute(t, p, "check", "x86-64-v9")
		if !errors.Is(err, x86level.ErrUnknownLevel) {
			t.Fatalf("Execute() error = %v, want ErrUnknownLevel", err)
		}
		if !strings.Contains(err.Error(), "available: x86-64, x86-64-v2") {
			t.Errorf("error %q missing available levels", err)
		}
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := execute(t, p, "check", "x86-64-v4", "--json")
		if err == nil {
			t.Fatal("Execute() expected error for unsupported level")
		}
		var got checkReport
		if err := json.Unmarshal([]byte(stdout), &got); err != nil {
			t.Fatalf("invalid JSON %q: %v", stdout, err)
		}
		want := checkReport{
			OK:      false,
			Level:   "x86-64-v4",
			Missing: []string{"AVX512BW", "AVX512CD", "AVX512DQ", "AVX512F", "AVX512VL"},
			Reason:  "level x86-64-v4: missing AVX512BW, AVX512CD, AVX512DQ, AVX512F, AVX512VL",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("check report mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestLevels(t *testing.T) {
	stdout, _, err := execute(t, fakeProber(), "levels")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{
		"x86-64:\n",
		"x86-64-v4:\n",
		"  POPCNT     popcnt | abm\n",
		"  SSE3       sse3 | ssse3 | pni\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, fakeProber(), "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(stdout, "x86level (dev)\n") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]outputFormat{
		"text": formatText,
		"JSON": formatJSON,
		"yml":  formatYAML,
		"yaml": formatYAML,
	} {
		got, err := parseOutputFormat(in)
		if err != nil {
			t.Fatalf("parseOutputFormat(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("parseOutputFormat(%q) = %d, want %d", in, got, want)
		}
	}

	_, err := parseOutputFormat("xml")
	if err == nil || !strings.Contains(err.Error(), `unknown format: "xml"`) {
		t.Fatalf("parseOutputFormat(xml) error = %v", err)
	}
}

func TestCheckLongDescription_ListsLevels(t *testing.T) {
	desc := checkLongDescription()
	if !strings.Contains(desc, "Available levels:") {
		t.Fatalf("checkLongDescription() missing header: %q", desc)
	}
	for _, name := range x86level.LevelNames() {
		if !strings.Contains(desc, name) {
			t.Fatalf("checkLongDescription() missing level %q", name)
		}
	}
}

func TestFormatWrappedList(t *testing.T) {
	got := formatWrappedList([]string{"aaaa", "bbbb", "cccc"}, "  ", 14)
	want := "  aaaa, bbbb,\n  cccc"
	if got != want {
		t.Errorf("formatWrappedList() = %q, want %q", got, want)
	}
	if got := formatWrappedList(nil, "  ", 80); got != "  (none)" {
		t.Errorf("formatWrappedList(nil) = %q", got)
	}
}
