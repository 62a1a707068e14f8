// Package cli provides the interactive HomeMoney sync command-line client.
//
// It wires configuration, the local sqlite store, the remote API client and
// the sync services into an interactive REPL. A background connectivity
// watcher flips the app between online and offline mode and kicks off a sync
// when the server becomes reachable again.
//
// Key commands:
//   - add-expense / add-debt — record entries locally (offline-safe)
//   - list / delete          — inspect and remove local records
//   - sync                   — run one full sync cycle
//   - status                 — engine status, mode and pending-change count
//   - watch                  — periodic sync loop with live status output
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and Root for details.
package cli
