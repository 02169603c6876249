// Package controller owns the interaction workflow of the pose client.
//
// A Controller holds the selected image, its preview, the latest keypoints and
// annotated results, the active view and the current error. Every transition is
// published to subscribers as a State snapshot so presentation layers (terminal
// UI, CLI commands, tests) observe the same sequence.
//
// The two request operations may run at the same time. Each one tracks its own
// lifecycle; shared fields follow last-write-wins, and Loading stays true while
// any request is outstanding. Results that come back after the user picked a
// different image are dropped; so are failures, which the request method still
// returns to its caller but never records in State.Error.
package controller
