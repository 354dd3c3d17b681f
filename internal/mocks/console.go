package mocks

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Call is one command the fake console was asked to run.
type Call struct {
	Cmd   string
	Dir   string
	Stdin string
}

type handler struct {
	match string
	fn    func(Call) (string, error)
}

// FakeConsole records commands instead of running them. Handlers are matched
// by substring in registration order, the first match answers.
type FakeConsole struct {
	Calls    []Call
	handlers []handler
}

func NewFakeConsole() *FakeConsole {
	return &FakeConsole{}
}

// Handle answers every command containing match with fn.
func (f *FakeConsole) Handle(match string, fn func(Call) (string, error)) *FakeConsole {
	f.handlers = append(f.handlers, handler{match: match, fn: fn})
	return f
}

// FailOn makes every command containing match fail.
func (f *FakeConsole) FailOn(match string) *FakeConsole {
	return f.Handle(match, func(c Call) (string, error) {
		return "", fmt.Errorf("failed to run %s: exit status 1", c.Cmd)
	})
}

// Output makes every command containing match print out and succeed.
func (f *FakeConsole) Output(match, out string) *FakeConsole {
	return f.Handle(match, func(Call) (string, error) { return out, nil })
}

func (f *FakeConsole) Run(cmd string, opts ...func(*exec.Cmd)) (string, error) {
	c := &exec.Cmd{}
	for _, o := range opts {
		o(c)
	}
	call := Call{Cmd: cmd, Dir: c.Dir}
	if c.Stdin != nil {
		b, _ := io.ReadAll(c.Stdin)
		call.Stdin = string(b)
	}
	f.Calls = append(f.Calls, call)

	for _, h := range f.handlers {
		if strings.Contains(cmd, h.match) {
			return h.fn(call)
		}
	}
	return "", nil
}

func (f *FakeConsole) Start(cmd *exec.Cmd, opts ...func(*exec.Cmd)) error {
	_, err := f.Run(strings.Join(cmd.Args, " "), opts...)
	return err
}

func (f *FakeConsole) RunTemplate(st []string, template string) error {
	for _, s := range st {
		if _, err := f.Run(fmt.Sprintf(template, s)); err != nil {
			return err
		}
	}
	return nil
}

// Commands returns the command lines in the order they ran.
func (f *FakeConsole) Commands() []string {
	cmds := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		cmds = append(cmds, c.Cmd)
	}
	return cmds
}

// Matching returns the commands containing match.
func (f *FakeConsole) Matching(match string) []string {
	var cmds []string
	for _, c := range f.Calls {
		if strings.Contains(c.Cmd, match) {
			cmds = append(cmds, c.Cmd)
		}
	}
	return cmds
}
