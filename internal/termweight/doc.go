// Package termweight assigns importance weights to query and document terms.
//
// A term's weight blends two inverse-frequency signals (raw corpus frequency
// and document frequency) and scales the result by named-entity and
// part-of-speech multipliers. Every Weights call is normalized so the
// returned weights sum to 1.
//
// Unknown long terms borrow the rarest signal of their dictionary sub-words,
// damped by a factor of six; terms that remain unknown fall back to a floor.
package termweight
