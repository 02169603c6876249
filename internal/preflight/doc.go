// Package preflight provides readiness checks for the pose service and the
// local directories CloudPose writes to or reads images from.
//
// `cloudpose status` runs every check and prints the results. Load tests probe
// the service before spawning users so an unreachable address fails fast
// instead of producing a run full of failures.
package preflight
