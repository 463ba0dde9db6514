// Package cli provides the interactive MiniTwit auth command-line client.
//
// It wires configuration, the local session store, the gRPC client and an
// interactive REPL. The session (username and token pair) survives restarts;
// tokens rotated by the client, explicitly or transparently, are saved back.
//
// Commands: login, whoami, refresh, logout, help, exit.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
