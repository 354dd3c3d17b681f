package op

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cosmicwatch/stationcore/pkg/schema"
)

const exitSuccess = "exit 0"

var (
	// > file, 2>>file, &>file, 2>&1 ...
	redirectOp       = regexp.MustCompile(`^(\d?>>?|&>>?)$`)
	redirectAttached = regexp.MustCompile(`^(\d?>>?|&>>?)[^&]\S*$|^\d?>&\d$`)
	interpreterName  = regexp.MustCompile(`^(python[0-9.]*|sh|bash)$`)
)

// RepairAutostart rewrites an autostart script so that it starts with an
// interpreter line, every known launch line runs detached with its output
// sent to the task log, and the script ends with a single success exit.
// Launch lines already detached to their log are kept as written. Launch
// lines missing from the script are not added.
func RepairAutostart(content, interpreter string, tasks []schema.LaunchTask) string {
	lines := splitLines(NormalizeNewlines(content))
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "#!") {
		lines = append([]string{interpreter}, lines...)
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[0])
	for _, l := range lines[1:] {
		if strings.TrimRight(l, " \t") == exitSuccess {
			continue
		}
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			out = append(out, l)
			continue
		}
		if task, ok := MatchLaunch(trimmed, tasks); ok {
			code, _ := splitComment(trimmed)
			if !detachedTo(code, task.Log) {
				indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
				l = indent + CanonicalLaunch(trimmed, task.Log)
			}
		}
		out = append(out, l)
	}
	out = append(out, exitSuccess)
	return joinLines(out)
}

// MatchLaunch finds the task a command line launches. The program is looked
// up after optional sudo, nohup or exec wrappers and an optional interpreter,
// by full path or by file name.
func MatchLaunch(line string, tasks []schema.LaunchTask) (schema.LaunchTask, bool) {
	code, _ := splitComment(line)
	_, cmd := splitChain(trimSemicolons(code))
	prog := programToken(strings.Fields(cmd))
	if prog == "" {
		return schema.LaunchTask{}, false
	}
	for _, t := range tasks {
		if prog == t.Command || filepath.Base(prog) == filepath.Base(t.Command) {
			return t, true
		}
	}
	return schema.LaunchTask{}, false
}

// CanonicalLaunch returns line detached with both output streams sent to log.
// A trailing comment is kept after the detach.
func CanonicalLaunch(line, log string) string {
	code, comment := splitComment(line)
	prefix, cmd := splitChain(trimSemicolons(code))
	base := stripLaunchDecorations(cmd)
	if prefix != "" {
		base = prefix + " " + base
	}
	out := fmt.Sprintf("%s > %s 2>&1 &", base, log)
	if comment != "" {
		out += " " + comment
	}
	return out
}

// splitComment separates an unquoted trailing comment from the command.
func splitComment(line string) (string, string) {
	var quote rune
	escaped := false
	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t'):
			return strings.TrimSpace(line[:i]), line[i:]
		}
	}
	return strings.TrimSpace(line), ""
}

func trimSemicolons(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	for strings.HasSuffix(cmd, ";") && !strings.HasSuffix(cmd, ";;") {
		cmd = strings.TrimSpace(strings.TrimSuffix(cmd, ";"))
	}
	return cmd
}

// detachedTo reports whether code already runs in the background with
// stdout and stderr both going to log.
func detachedTo(code, log string) bool {
	code = trimSemicolons(code)
	if !strings.HasSuffix(code, "&") || strings.HasSuffix(code, "&&") {
		return false
	}
	_, cmd := splitChain(strings.TrimSuffix(code, "&"))
	fields := strings.Fields(cmd)

	out, both := false, false
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		next := ""
		if i+1 < len(fields) {
			next = fields[i+1]
		}
		switch {
		case (f == ">" || f == ">>" || f == "1>" || f == "1>>") && next == log:
			out, both = true, false
			i++
		case f == ">"+log || f == ">>"+log || f == "1>"+log || f == "1>>"+log:
			out, both = true, false
		case (f == "&>" || f == "&>>") && next == log:
			out, both = true, true
			i++
		case f == "&>"+log || f == "&>>"+log:
			out, both = true, true
		case f == "2>&1":
			both = out
		case redirectOp.MatchString(f):
			out, both = false, false
			i++
		case redirectAttached.MatchString(f):
			out, both = false, false
		}
	}
	return both
}

// splitChain separates a leading `a && b &&` chain from the last command.
func splitChain(line string) (string, string) {
	idx := strings.LastIndex(line, "&&")
	if idx < 0 {
		return "", strings.TrimSpace(line)
	}
	return strings.TrimSpace(line[:idx+2]), strings.TrimSpace(line[idx+2:])
}

func stripLaunchDecorations(cmd string) string {
	cmd = trimSemicolons(cmd)
	cmd = strings.TrimSpace(strings.TrimSuffix(cmd, "&"))

	fields := strings.Fields(cmd)
	kept := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case redirectOp.MatchString(f):
			i++ // and its target
		case redirectAttached.MatchString(f):
		default:
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

func programToken(fields []string) string {
	i := 0
	for i < len(fields) {
		switch fields[i] {
		case "sudo":
			i++
			for i < len(fields) && strings.HasPrefix(fields[i], "-") {
				if fields[i] == "-u" || fields[i] == "-g" {
					i++
				}
				i++
			}
			continue
		case "nohup", "exec":
			i++
			continue
		}
		break
	}
	if i < len(fields) && interpreterName.MatchString(filepath.Base(fields[i])) {
		i++
		for i < len(fields) && strings.HasPrefix(fields[i], "-") {
			i++
		}
	}
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}
