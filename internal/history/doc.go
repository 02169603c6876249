// Package history persists load-test runs in a SQLite database under the
// configured data directory so past results can be listed and compared.
package history
