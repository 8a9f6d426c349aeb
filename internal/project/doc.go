// Package project opens a workspace for packing: it loads .ctxpack.yaml,
// builds or reuses the cached index snapshot, opens the session state
// database and wires a contextpack.Service over them. The CLI and the MCP
// server both go through Open.
package project
