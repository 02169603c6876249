// Package loadtest drives simulated users against both pose endpoints.
//
// Images are preloaded from a directory and encoded once. Each user waits a
// random interval, then posts a random image under a random file name to one of
// the two endpoints with equal weight. A non-200 status counts as a failure; a
// 200 with an unparseable body is only logged.
//
// Search repeats runs with increasing user counts to find the largest load the
// service handles without failures.
package loadtest
