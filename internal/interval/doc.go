// Package interval provides one-dimensional endpoints and intervals with a
// relation algebra.
//
// An Endpoint is a value plus a Side. Endpoints are totally ordered: first by
// value, then by side rank for equal values:
//
//	p)  <  [p  <  [p]  <  p]  <  (p
//
// RightOpen, LeftClosed, Singular, RightClosed, LeftOpen.
//
// An Interval relates to another Interval by exactly one Relation, computed
// from endpoint ordering alone. Masks are bitwise unions of relations and are
// used to select cues in lookups.
//
// Infinite values are legal only in the closed orientation: -Inf as a closed
// low endpoint and +Inf as a closed high endpoint (or singular).
package interval
