// Package logging builds the slog loggers CloudPose writes to its log file and,
// with --verbose, to stderr.
//
// The console format puts the component, operation and short request id in a
// fixed header so a keypoints call and its annotated sibling can be told apart
// at a glance; the JSON format keeps every field as its own key.
package logging
