package bom

import "fmt"

// ComponentKind discriminates the Component variants
type ComponentKind string

const (
	ComponentKindExternalProduct ComponentKind = "external_product"
	ComponentKindExternalVariant ComponentKind = "external_variant"
	ComponentKindInternalItem    ComponentKind = "internal_item"
)

// IsValid checks if the kind is one of the three component variants
func (k ComponentKind) IsValid() bool {
	switch k {
	case ComponentKindExternalProduct, ComponentKindExternalVariant, ComponentKindInternalItem:
		return true
	}
	return false
}

// Component is what a BOMItem consumes. It is a closed set: only the three
// types in this file implement it, so a switch over them is exhaustive.
type Component interface {
	Kind() ComponentKind
	Label() string
	isComponent()
}

// ExternalProductComponent is a platform product whose stock lives upstream
type ExternalProductComponent struct {
	Product *Product
}

// ExternalVariantComponent is one variation of a platform product
type ExternalVariantComponent struct {
	Product *Product
	Variant *ProductVariant
}

// InternalItemComponent is an internal-only stock item
type InternalItemComponent struct {
	Item *InternalItem
}

func (ExternalProductComponent) Kind() ComponentKind { return ComponentKindExternalProduct }
func (ExternalVariantComponent) Kind() ComponentKind { return ComponentKindExternalVariant }
func (InternalItemComponent) Kind() ComponentKind    { return ComponentKindInternalItem }

func (ExternalProductComponent) isComponent() {}
func (ExternalVariantComponent) isComponent() {}
func (InternalItemComponent) isComponent()    {}

func (c ExternalProductComponent) Label() string {
	return fmt.Sprintf("product:%d", c.Product.ExternalID)
}

func (c ExternalVariantComponent) Label() string {
	return fmt.Sprintf("product:%d/variant:%d", c.Product.ExternalID, c.Variant.ExternalID)
}

func (c InternalItemComponent) Label() string {
	if c.Item.SKU != "" {
		return "internal:" + c.Item.SKU
	}
	return "internal:" + c.Item.ID.String()
}

// validateComponent rejects nil components and variants missing their entity
func validateComponent(c Component) error {
	switch v := c.(type) {
	case ExternalProductComponent:
		if v.Product == nil {
			return ErrInvalidComponent
		}
	case ExternalVariantComponent:
		if v.Product == nil || v.Variant == nil {
			return ErrInvalidComponent
		}
	case InternalItemComponent:
		if v.Item == nil {
			return ErrInvalidComponent
		}
	default:
		return ErrInvalidComponent
	}
	return nil
}
