// Package countdown computes exam availability from a scheduled exam date.
//
// A Schedule pins the exam date to a fixed local start hour (10:00). Evaluate is
// the pure, pull-based recomputation of readiness and the remaining duration for
// a given instant; Timer drives it once per tick interval and owns the one-shot
// auto-start timer that hands the candidate over to the exam flow.
//
// Lifecycle of a Timer:
//
//	New    evaluate once, arm the repeating tick and the one-shot auto-start
//	tick   re-evaluate; Counting -> Ready is terminal, ticking stops once Ready
//	Close  cancel both timers; no callback or observer runs after Close returns
package countdown
