// Package internal holds the refresh credential codec: secret generation,
// hashing, and the opaque wire encoding shared by the registry and the
// HTTP surface.
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessionkit API.
//   - Persist or log raw credential secrets.
package internal
