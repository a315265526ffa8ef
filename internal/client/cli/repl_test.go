package cli

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
}

func (f *fakeExec) rec(name string) error { f.calls = append(f.calls, name); return nil }
func (f *fakeExec) recID(name, id string) error {
	f.calls = append(f.calls, name+" "+id)
	return nil
}

func (f *fakeExec) List(context.Context) error                 { return f.rec("list") }
func (f *fakeExec) Trash(context.Context) error                { return f.rec("trash") }
func (f *fakeExec) Show(_ context.Context, id string) error    { return f.recID("show", id) }
func (f *fakeExec) Add(context.Context) error                  { return f.rec("add") }
func (f *fakeExec) Edit(_ context.Context, id string) error    { return f.recID("edit", id) }
func (f *fakeExec) Dispute(_ context.Context, id string) error { return f.recID("dispute", id) }
func (f *fakeExec) Remove(_ context.Context, id string) error  { return f.recID("rm", id) }
func (f *fakeExec) Restore(_ context.Context, id string) error { return f.recID("restore", id) }
func (f *fakeExec) Sync(context.Context) error                 { return f.rec("sync") }
func (f *fakeExec) Errors(context.Context) error               { return f.rec("errors") }
func (f *fakeExec) Clear(context.Context) error                { return f.rec("clear") }
func (f *fakeExec) WhoAmI(context.Context) error               { return f.rec("whoami") }
func (f *fakeExec) Export(context.Context) error               { return f.rec("export") }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_Dispatch(t *testing.T) {
	captureOutput(t)

	input := strings.Join([]string{
		"help",
		"l",
		"add",
		"show abc",
		"edit abc",
		"dispute abc",
		"rm abc",
		"trash",
		"restore abc",
		"sync",
		"errors",
		"clear",
		"whoami",
		"export",
		"",
		"exit",
		"list",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, rdr(input))

	assert.Equal(t, []string{
		"list", "add", "show abc", "edit abc", "dispute abc", "rm abc", "trash",
		"restore abc", "sync", "errors", "clear", "whoami", "export",
	}, exec.calls)
}

func TestRunREPL_UsageUnknownAndEOF(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, rdr("show\nfoobar\n"))

	assert.Empty(t, exec.calls)
	assert.Contains(t, *out, "Usage: show <id>")
	assert.Contains(t, *out, "Unknown command: foobar")
	assert.Contains(t, *out, "cbt s>")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	captureOutput(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "s" }, rdr("list\n"))
	assert.Empty(t, exec.calls)
}
