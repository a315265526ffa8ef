// Package cli provides the interactive journal client.
//
// It wires configuration, the local database, the optimistic store and the
// sync orchestrator behind a small REPL. The signed-in account comes from a
// session file that is watched for changes; a background watcher probes the
// backend and triggers a sync whenever connectivity returns.
//
// Commands:
//   - list / trash: visible and soft-deleted entries
//   - show, add, edit, dispute, rm, restore: single-entry operations
//   - sync, errors, clear, whoami, export, exit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
