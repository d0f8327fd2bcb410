package x86level

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
)

// flagsLabel is the label of the lines listing CPU flags in /proc/cpuinfo.
const flagsLabel = "flags"

// maxLineSize bounds a single cpuinfo line. Longer lines are skipped.
const maxLineSize = 1 << 20

// ParseFlags extracts CPU flag tokens from cpuinfo-formatted text.
//
// Every line of the form "flags : tok1 tok2 ..." contributes its tokens, and
// tokens from all such lines are merged, so a flag reported by any logical CPU
// is present in the result. Lines with other labels (including "vmx flags")
// are ignored. Text without any flags line yields an empty set.
// Tokens are kept as reported.
//
// A line longer than maxLineSize is discarded as a whole, without failing
// the other lines.
func ParseFlags(r io.Reader) (FlagSet, error) {
	flags := FlagSet{}
	br := bufio.NewReaderSize(r, maxLineSize)

	for {
		line, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = br.ReadSlice('\n')
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return FlagSet{}, err
			}
			continue
		}

		addFlagsLine(flags, string(line))

		if err == io.EOF {
			break
		}
		if err != nil {
			return FlagSet{}, err
		}
	}

	return flags, nil
}

func addFlagsLine(flags FlagSet, line string) {
	label, value, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok {
		return
	}
	if strings.TrimSpace(label) != flagsLabel {
		return
	}
	for _, tok := range strings.Fields(value) {
		flags[tok] = struct{}{}
	}
}

// ReadFlags reads CPU flags from a cpuinfo file.
// On error it returns an empty, non-nil set alongside the error, so callers
// can carry on as if no flag were reported.
func ReadFlags(path string) (FlagSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return FlagSet{}, err
	}
	defer f.Close()

	return ParseFlags(f)
}
