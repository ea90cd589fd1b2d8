// Package models contains the GORM persistence models for the BOM sync tables.
// They stay separate from the domain entities so the domain carries no ORM tags;
// each model converts with ToDomain / FromDomain.
//
//   - base.go: shared id, tenant and timestamp columns
//   - product.go: products, product_variants, internal_items
//   - bom.go: boms, bom_items
//   - audit.go: stock_audit_logs
package models
