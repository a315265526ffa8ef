package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	List(ctx context.Context) error
	Trash(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, id string) error
	Dispute(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Errors(ctx context.Context) error
	Clear(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Export(ctx context.Context) error
}

const helpText = "Available commands: (l)ist, show <id>, add, edit <id>, dispute <id>, rm <id>, " +
	"restore <id>, trash, sync, errors, clear, whoami, export, exit"

// runREPL reads commands from reader until EOF, "exit" or "quit", or until
// ctx ends. The first token is the command; commands that act on one entry
// take its id (or a unique prefix) as the second token.
//
// Errors returned by command handlers are ignored here; handlers report
// their own failures so the loop stays focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	withID := map[string]func(context.Context, string) error{
		"show":    a.Show,
		"edit":    a.Edit,
		"dispute": a.Dispute,
		"rm":      a.Remove,
		"restore": a.Restore,
	}
	plain := map[string]func(context.Context) error{
		"l":      a.List,
		"list":   a.List,
		"trash":  a.Trash,
		"add":    a.Add,
		"sync":   a.Sync,
		"errors": a.Errors,
		"clear":  a.Clear,
		"whoami": a.WhoAmI,
		"export": a.Export,
	}

	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("cbt %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		if fn, ok := withID[cmd]; ok {
			if len(parts) < 2 {
				printlnFn(fmt.Sprintf("Usage: %s <id>", cmd))
				continue
			}
			_ = fn(ctx, parts[1])
			continue
		}
		if fn, ok := plain[cmd]; ok {
			_ = fn(ctx)
			continue
		}

		switch cmd {
		case "help":
			printlnFn(helpText)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
