// Package packager runs the release pipeline: reset the workspace, build and
// collect the components, compress them into a self-extracting archive and
// write the release report.
//
// Steps run strictly in order and the first fatal error stops the run.
package packager
