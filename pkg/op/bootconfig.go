package op

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cosmicwatch/stationcore/pkg/schema"
	"github.com/hashicorp/go-multierror"
	"github.com/twpayne/go-vfs/v4"
)

const (
	directivePrefix = "dtparam="
	overlayPrefix   = "dtoverlay="
	allSection      = "[all]"
)

// DirectiveLine renders the enable line for d.
func DirectiveLine(d schema.Directive) string {
	return fmt.Sprintf("%s%s=%s", directivePrefix, d.Key, d.Value)
}

// OverlayLine renders the overlay line for name.
func OverlayLine(name string) string {
	return overlayPrefix + name
}

// PatchBootConfig returns content with exactly one active line per directive
// key, carrying the wanted value, and every overlay line present once.
// Unrelated lines keep their order. The result is a fixed point: patching it
// again returns the same text.
func PatchBootConfig(content string, directives []schema.Directive, overlays []string) string {
	lines := splitLines(NormalizeNewlines(content))
	var add []string

	for _, d := range directives {
		want := DirectiveLine(d)
		keyPrefix := fmt.Sprintf("%s%s=", directivePrefix, d.Key)

		var active []int
		for i, l := range lines {
			if strings.HasPrefix(strings.TrimSpace(l), keyPrefix) {
				active = append(active, i)
			}
		}
		if len(active) == 1 && strings.TrimSpace(lines[active[0]]) == want {
			continue
		}
		lines = dropIndexes(lines, active)
		add = append(add, want)
	}

	for _, o := range overlays {
		want := OverlayLine(o)
		if hasTrimmedLine(lines, want) || hasTrimmedLine(add, want) {
			continue
		}
		add = append(add, want)
	}

	if len(add) > 0 && needsAllSection(lines) {
		lines = append(lines, allSection)
	}
	return joinLines(append(lines, add...))
}

// ApplyBootConfig patches every existing candidate in place and returns the
// ones that were rewritten. Missing candidates are skipped, candidates that
// cannot be read or written are reported in the error.
func ApplyBootConfig(fs vfs.FS, cfg schema.BootConfig) (patched []string, err error) {
	for _, candidate := range cfg.Candidates {
		data, rerr := fs.ReadFile(candidate)
		if errors.Is(rerr, os.ErrNotExist) {
			continue
		}
		if rerr != nil {
			err = multierror.Append(err, fmt.Errorf("reading %s: %w", candidate, rerr))
			continue
		}
		info, serr := fs.Stat(candidate)
		if serr != nil {
			err = multierror.Append(err, serr)
			continue
		}

		out := PatchBootConfig(string(data), cfg.Directives, cfg.Overlays)
		changed, werr := WriteIfChanged(fs, candidate, []byte(out), info.Mode().Perm())
		if werr != nil {
			err = multierror.Append(err, fmt.Errorf("writing %s: %w", candidate, werr))
			continue
		}
		if changed {
			patched = append(patched, candidate)
		}
	}
	return patched, err
}

func dropIndexes(lines []string, idx []int) []string {
	if len(idx) == 0 {
		return lines
	}
	skip := make(map[int]bool, len(idx))
	for _, i := range idx {
		skip[i] = true
	}
	out := make([]string, 0, len(lines)-len(idx))
	for i, l := range lines {
		if !skip[i] {
			out = append(out, l)
		}
	}
	return out
}

func hasTrimmedLine(lines []string, want string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) == want {
			return true
		}
	}
	return false
}

// needsAllSection reports whether lines appended at the end would land in a
// board specific conditional section.
func needsAllSection(lines []string) bool {
	last := ""
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]") {
			last = t
		}
	}
	return last != "" && last != allSection
}
