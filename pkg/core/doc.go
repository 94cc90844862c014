// Package core provides the fundamental types and interfaces for the harvester.
//
// This package contains:
//   - The Job unit of work and the append-log record shapes
//   - Journal and StateStore contracts implemented by the durable stores
//   - The error taxonomy that drives retry decisions
//   - Backoff policy for failed attempts
//
// Most users should import the root package github.com/eduvid/harvester
// instead of this package directly.
package core
