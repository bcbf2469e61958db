// Package testutil provides in-memory backends for tests that resolve
// imports without touching the real file system or environment.
package testutil
