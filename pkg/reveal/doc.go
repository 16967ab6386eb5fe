// Package reveal turns a stream of raw text fragments of arbitrary size into
// an evenly paced stream of small reveal units (one rune by default), the
// typing effect shown while a response streams in.
//
// Pacing is a presentation affordance only. The revealer accumulates the raw
// fragments untouched, and that accumulated text is what gets committed to
// the conversation once the stream ends.
package reveal
