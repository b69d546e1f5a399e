// Package models contains GORM persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer
// free from ORM concerns.
//
// Sensitive columns hold sealed envelope JSON, never plaintext. Mapping
// between a domain value and its sealed column is done by the repositories,
// which own the encryption service; models only carry the stored form.
//
// Structure:
//   - base.go: base persistence models (BaseModel, TenantAggregateModel)
//   - contact.go: contacts table
//   - proposal.go: proposals table
package models
