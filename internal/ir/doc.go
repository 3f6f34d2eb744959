// Package ir provides the value model and declarative definition types for
// the app engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - IRValue is closed: null, string, number (float64), boolean, array, object
//   - Definition JSON uses camelCase names (errorMessage, minValue, perAgent)
//   - Canonical JSON (RFC 8785) is the only serialization used for hashing
package ir
