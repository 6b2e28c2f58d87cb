// Package quota tracks per-requester consumption of upstream work.
//
// Every upstream call kind is assigned a unit weight; cached answers cost
// zero. The Ledger records consumed units per requester inside a rolling
// fixed-length window and reports how much budget remains. Records reset
// lazily when the window elapses rather than being swept.
//
// Callers follow a check-then-charge discipline:
//
//	if ledger.Remaining(requester) == 0 {
//	    // reject before any upstream call
//	}
//	data, units, err := fetch()
//	ledger.Charge(requester, units) // actual cost, may exceed the estimate
//
// Charge can drive the remaining value negative when the actual cost of a
// multi-page fetch exceeds the pre-check estimate. The overshoot is bounded
// by one in-flight request.
package quota
