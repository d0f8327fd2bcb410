package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/leodido/structcli"
	"github.com/leodido/x86level"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Build metadata injected via ldflags (-X main.version=...).
// When built without ldflags (e.g., plain `go build`), these remain
// at their zero values and the version command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

// prober collects the host CPU flags. Commands receive it so tests can
// substitute a canned flag set.
type prober func(opts ...x86level.ProbeOption) (*x86level.HostFeatures, error)

func main() {
	if err := rootCmd(x86level.ProbeWith).Execute(); err != nil {
		os.Exit(1)
	}
}

// RootOptions defines flags for the root command.
type RootOptions struct {
	All bool `flag:"all" flagshort:"a" flagdescr:"Print every supported level instead of only the highest"`
}

func (o *RootOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func rootCmd(probe prober) *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:   "x86level",
		Short: "Detect the x86-64 microarchitecture level of this CPU",
		Long: `x86level reads the CPU flags exposed by the kernel in /proc/cpuinfo and
prints the x86-64 microarchitecture level they satisfy (x86-64, x86-64-v2,
x86-64-v3 or x86-64-v4). Use it to pick the binary variant for this machine.

Exits with code 0 when a level is supported, 1 otherwise.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			logger := newLogger(c.ErrOrStderr(), false)
			defer func() { _ = logger.Sync() }()

			hf, err := probe(x86level.WithLogger(logger))
			if err != nil {
				return err
			}

			mode := x86level.ModeHighest
			if opts.All {
				mode = x86level.ModeAll
			}
			out, err := x86level.Select(hf.Levels, mode)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.OutOrStdout(), out)
			return nil
		},
	}

	if err := opts.Attach(root); err != nil {
		panic(err)
	}

	root.AddCommand(probeCmd(probe))
	root.AddCommand(checkCmd(probe))
	root.AddCommand(levelsCmd())
	root.AddCommand(versionCmd(probe))
	return root
}

// ProbeOptions defines flags for the probe subcommand.
type ProbeOptions struct {
	Source  x86level.Source `flag:"source" flagshort:"s" flagdescr:"Where to read CPU flags from (procfs, cpuid)" flagcustom:"true"`
	Format  outputFormat    `flag:"format" flagshort:"f" flagdescr:"Output format (text, json, yaml)" flagcustom:"true"`
	CPUInfo string          `flag:"cpuinfo" flagdescr:"Path of the cpuinfo file (procfs source only)"`
	Verbose bool            `flag:"verbose" flagshort:"v" flagdescr:"Log probe details to stderr"`
}

func (o *ProbeOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *ProbeOptions) DefineSource(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*x86level.Source)
	*fieldPtr = x86level.SourceProcfs
	return enumflag.New(fieldPtr, "source", sourceIdentifierMap, enumflag.EnumCaseInsensitive), descr
}

func (o *ProbeOptions) DecodeSource(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}

	return x86level.ParseSource(s)
}

func (o *ProbeOptions) DefineFormat(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*outputFormat)
	*fieldPtr = formatText
	return enumflag.New(fieldPtr, "format", formatIdentifierMap, enumflag.EnumCaseInsensitive), descr
}

func (o *ProbeOptions) DecodeFormat(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}

	return parseOutputFormat(s)
}

func probeCmd(probe prober) *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Show every level and the CPU flags satisfying each feature",
		Args:  cobra.NoArgs,
		PreRunE: func(c *cobra.Command, args []string) error {
			if err := structcli.Unmarshal(c, opts); err != nil {
				return err
			}
			if opts.CPUInfo != "" && opts.Source != x86level.SourceProcfs {
				return fmt.Errorf("--cpuinfo cannot be used with --source %s", opts.Source)
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			logger := newLogger(c.ErrOrStderr(), opts.Verbose)
			defer func() { _ = logger.Sync() }()

			popts := []x86level.ProbeOption{
				x86level.WithSource(opts.Source),
				x86level.WithLogger(logger),
			}
			if opts.CPUInfo != "" {
				popts = append(popts, x86level.WithCPUInfoPath(opts.CPUInfo))
			}

			hf, err := probe(popts...)
			if err != nil {
				return err
			}

			switch opts.Format {
			case formatJSON:
				return printJSON(c.OutOrStdout(), newProbeReport(hf))
			case formatYAML:
				return printYAML(c.OutOrStdout(), newProbeReport(hf))
			}

			fmt.Fprint(c.OutOrStdout(), hf)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// CheckOptions defines flags for the check subcommand.
type CheckOptions struct {
	JSON bool `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CheckOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func checkCmd(probe prober) *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:       "check LEVEL",
		Short:     "Check that the CPU supports a microarchitecture level",
		Long:      checkLongDescription(),
		Args:      cobra.ExactArgs(1),
		ValidArgs: x86level.LevelNames(),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			level, err := x86level.ParseLevel(args[0])
			if err != nil {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(x86level.LevelNames(), ", "))
			}

			logger := newLogger(c.ErrOrStderr(), false)
			defer func() { _ = logger.Sync() }()

			hf, err := probe(x86level.WithLogger(logger))
			if err != nil {
				return err
			}

			checkErr := x86level.Check(hf.Flags, level)
			if opts.JSON {
				if err := printJSON(c.OutOrStdout(), newCheckReport(level, checkErr)); err != nil {
					return err
				}
				return checkErr
			}
			if checkErr != nil {
				return checkErr
			}

			fmt.Fprintf(c.OutOrStdout(), "OK: %s supported\n", level)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func levelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "List the features and CPU flags each level requires",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			fmt.Fprint(c.OutOrStdout(), formatLevelTable())
			return nil
		},
	}
}

func versionCmd(probe prober) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool, kernel, and CPU version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			w := c.OutOrStdout()
			if version != "" {
				fmt.Fprintf(w, "x86level %s", version)
				if commit != "" {
					fmt.Fprintf(w, " (%s)", commit)
				}
				if date != "" {
					fmt.Fprintf(w, " built %s", date)
				}
				fmt.Fprintln(w)
			} else {
				fmt.Fprintln(w, "x86level (dev)")
			}

			logger := newLogger(c.ErrOrStderr(), false)
			defer func() { _ = logger.Sync() }()

			hf, err := probe(x86level.WithLogger(logger))
			if err != nil {
				return err
			}
			if hf.KernelVersion != "" {
				fmt.Fprintf(w, "Kernel: %s\n", hf.KernelVersion)
			}
			if hf.CPUBrand != "" {
				fmt.Fprintf(w, "CPU: %s\n", hf.CPUBrand)
			}
			return nil
		},
	}
}

// newLogger returns a console logger writing to w.
// Only warnings are shown unless verbose is set.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core).Named("x86level")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func checkLongDescription() string {
	return fmt.Sprintf(`Check that the CPU supports the given microarchitecture level.
Exits with code 0 if every feature of the level is present, 1 otherwise.

Available levels:
%s`, formatWrappedList(x86level.LevelNames(), "  ", 80))
}

func formatWrappedList(items []string, indent string, maxWidth int) string {
	if len(items) == 0 {
		return indent + "(none)"
	}

	lines := make([]string, 0, len(items))
	line := indent
	for i, item := range items {
		token := item
		if i < len(items)-1 {
			token += ", "
		}

		if len(line)+len(token) > maxWidth && line != indent {
			lines = append(lines, strings.TrimRight(line, " "))
			line = indent + token
			continue
		}

		line += token
	}

	lines = append(lines, strings.TrimRight(line, " "))
	return strings.Join(lines, "\n")
}

func formatLevelTable() string {
	var b strings.Builder
	for _, l := range x86level.LevelValues() {
		fmt.Fprintf(&b, "%s:\n", l)
		for _, f := range l.Features() {
			fmt.Fprintf(&b, "  %-10s %s\n", f, strings.Join(f.Flags(), " | "))
		}
	}
	return b.String()
}
