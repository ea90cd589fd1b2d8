// Package bom contains the bill-of-materials domain: composite products, the
// components they are assembled from, and the bottleneck arithmetic that turns
// component stock into a buildable quantity.
//
// A BillOfMaterials is keyed by (ProductID, VariantID). VariantID 0 is the
// product-level default; a variant-specific BOM always wins over the default
// when resolving for that variant.
//
// Each BOMItem references exactly one Component: an external product, an
// external product variant, or an internal-only item. Items are never deleted
// when their component disappears upstream; they are deactivated with a reason.
package bom
