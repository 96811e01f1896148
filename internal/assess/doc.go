// Package assess is the cross-scale triage decision engine. It defines the
// scale field model, the per-scale evaluators (stroke screen, consciousness
// sum score, responsiveness, injury red-flags, fall-risk), the trigger
// router that cascades one scale's verdict into another scale's fields, and
// the session aggregate that runs the cascade synchronously to a fixed point.
package assess
