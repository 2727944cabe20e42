// Package main hosts the swc CLI entrypoint and command graph.
//
// The Cobra command tree is a thin caller-facing surface. `convert` wires the
// configured tools into a pipeline, submits one job per locator to the
// scheduler and reports each outcome as it arrives; `history`, `doctor`,
// `clean` and `config` expose the ledger, readiness checks, workspace sweep
// and configuration scaffolding. Behaviour lives in the internal packages;
// commands only resolve configuration, build components and render results.
package main
