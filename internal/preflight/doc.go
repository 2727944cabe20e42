// Package preflight provides readiness checks for the filesystem paths and
// services swc depends on.
//
// These checks run in two contexts:
//   - `swc convert` calls RunAll before admitting any job and aborts when a
//     check fails, so a batch never starts against an unwritable workspace.
//   - `swc doctor` renders every check alongside tool availability.
package preflight
