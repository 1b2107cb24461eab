// Package threat defines threat events and the bounded store that keeps
// them.
//
// Events are created by the security detector and never removed
// individually; the store evicts the oldest event once MaxEvents is
// reached. The only mutable part of an event is its administrative status,
// which follows this machine:
//
//	detected -> investigating | mitigated | resolved | false_positive
//	investigating, mitigated, resolved, false_positive -> any of those four
//
// There are no automatic transitions.
package threat
