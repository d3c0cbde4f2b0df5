// Package models contains the GORM persistence models that map domain
// aggregates to database tables. Models are kept separate from domain
// entities so the domain layer stays free of ORM tags; each model file
// carries the mappers converting in both directions.
//
// Files:
//   - base.go: AggregateModel, the shared identity/version columns
//   - ledger.go: Account, Transaction, Entry
//   - recon.go: ExternalTransaction, Match, Discrepancy
//   - payout.go: Payout, Item, Hold
//   - dispute.go: Dispute, EvidencePack
//   - policy.go: Policy, Rule, Approval, Incident
//   - idempotency.go: idempotency key record
package models
