// Package models contains GORM persistence models that map to database tables.
// They are kept apart from domain entities so the domain layer stays free of
// ORM concerns; each model converts to and from its domain type.
//
// Structure:
// - base.go: AggregateModel, the columns every aggregate table carries
// - numbering.go: numbering series
// - settlement.go: receivables, credit ledger, settlement transactions
// - application.go: service applications whose status settlement advances
package models
