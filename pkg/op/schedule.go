package op

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// noCrontab is how crontab -l reports an account without a table.
const noCrontab = "no crontab for"

// ValidateCadence checks a standard five field cron expression.
func ValidateCadence(cadence string) error {
	if _, err := cron.ParseStandard(cadence); err != nil {
		return fmt.Errorf("invalid cadence %q: %w", cadence, err)
	}
	return nil
}

// IsNoCrontab reports whether the output of a failed crontab -l only means
// the account has no table yet.
func IsNoCrontab(out string) bool {
	return strings.Contains(strings.ToLower(out), noCrontab)
}

// ScheduleEntry renders the table line running script on cadence.
func ScheduleEntry(cadence, script string) string {
	return cadence + " " + script
}

// MergeSchedule drops every line mentioning script and appends the entry
// for it, so the table holds exactly one line for script.
func MergeSchedule(table, cadence, script string) string {
	var kept []string
	for _, l := range splitLines(NormalizeNewlines(table)) {
		if strings.Contains(l, script) {
			continue
		}
		kept = append(kept, l)
	}
	return joinLines(append(kept, ScheduleEntry(cadence, script)))
}

// CountEntries returns how many lines of table mention script.
func CountEntries(table, script string) int {
	n := 0
	for _, l := range splitLines(NormalizeNewlines(table)) {
		if strings.Contains(l, script) {
			n++
		}
	}
	return n
}
