// Package posesvc talks to the remote pose-estimation service.
//
// The service exposes two POST endpoints that share one request envelope:
// /api/pose returns detected people with boxes and keypoints, and
// /api/pose/annotated returns a JPEG with the skeletons drawn on it. Client
// wraps both, tagging failures with services.ErrTransport so callers can
// classify them. Send is the low-level form used by the load generator, which
// needs raw status codes instead of errors.
package posesvc
