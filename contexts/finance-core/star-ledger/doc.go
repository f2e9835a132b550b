// Package starledger contains the SaveMore star ledger: the authoritative
// store of viewer star balances and wallet balances, and the only place where
// pay-per-view settlements, star spends, voice credit deductions and group
// entry fees are applied.
//
// Every balance movement happens inside one repository transaction together
// with its journal entries and outbox event, so callers may retry any
// operation without risking a double charge.
package starledger
