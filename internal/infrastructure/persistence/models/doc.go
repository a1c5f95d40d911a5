// Package models holds the GORM row types the repositories read and
// write. Domain aggregates stay free of ORM tags; mapper methods on
// each model convert in both directions.
//
// base.go carries the shared identity, version and tenant columns,
// settlement.go the settlement context tables (source lines, prepayment
// credits, settlement documents) and accounting.go the ledger tables
// (account items, journal entries).
package models
