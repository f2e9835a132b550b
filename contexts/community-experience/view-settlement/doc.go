// Package viewsettlement drives pay-per-view settlement for one viewer
// session. Eligibility timers decide when a view becomes billable, the
// orchestrator turns each eligible view into exactly one ledger call, and the
// viewing surface owns the timers of every item mounted in the session.
//
// The ledger is authoritative for "has this viewer ever watched this item".
// The guards kept here only stop redundant calls from the same session.
package viewsettlement
