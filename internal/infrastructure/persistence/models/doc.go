// Package models contains the GORM persistence models and their mapping to domain types.
// Domain packages stay free of storage tags; repositories convert at the boundary with
// ToDomain and FromDomain.
package models
