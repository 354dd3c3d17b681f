package op

import (
	"regexp"
	"strings"
)

var overlayEntry = regexp.MustCompile(`^\s*\d+:\s+(\S+)`)

// ParseActiveOverlays extracts the overlay names from `dtoverlay -l` output,
// in load order.
func ParseActiveOverlays(out string) []string {
	var names []string
	for _, l := range strings.Split(NormalizeNewlines(out), "\n") {
		if m := overlayEntry.FindStringSubmatch(l); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// FamilyOverlays filters active down to the overlays sharing the family prefix.
// They are returned last loaded first, the order dtoverlay can remove them in.
func FamilyOverlays(active []string, family string) []string {
	var out []string
	for i := len(active) - 1; i >= 0; i-- {
		if family != "" && strings.HasPrefix(active[i], family) {
			out = append(out, active[i])
		}
	}
	return out
}
