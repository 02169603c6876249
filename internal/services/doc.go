// Package services defines shared utilities consumed by the interaction
// controller and the remote service clients.
//
// Key responsibilities:
//   - Context helpers that stamp request identifiers and operation names for
//     logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     validation, encoding, transport, or configuration problems.
//
// Use these helpers when wiring new client code so error surfacing and
// observability stay uniform.
package services
