// Package errors defines the closed set of failure kinds the fetch layer
// produces and helpers to classify them.
//
// Every failure that crosses a package boundary carries exactly one Kind.
// Unclassified errors fall back to KindUpstream so callers can always
// switch on a known value.
package errors
