// Package main hosts the CloudPose CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the interaction controller from the
// terminal: one-shot keypoint and annotated-image requests, an interactive
// terminal UI, load generation against the pose service, load-test history,
// readiness checks, and configuration scaffolding. It centralizes
// configuration resolution and logger setup so subcommands can focus on
// presentation.
//
// Keep this package lean: add behaviour to the internal packages first, then
// surface it through dedicated commands or flags here.
package main
