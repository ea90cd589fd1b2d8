package bom

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockOrigin says where a component stock figure came from
type StockOrigin string

const (
	StockFromLive  StockOrigin = "live"
	StockFromCache StockOrigin = "cache"
	StockFromLocal StockOrigin = "local"
)

// RequiredQuantity returns quantity * (1 + wasteFactor)
func RequiredQuantity(quantity, wasteFactor decimal.Decimal) decimal.Decimal {
	return quantity.Mul(decimal.NewFromInt(1).Add(wasteFactor))
}

// BuildableUnits returns floor(stock / required). ok is false when required is
// not positive, meaning the line is a configuration error and must be skipped.
// Non-positive stock builds nothing.
func BuildableUnits(stock, required decimal.Decimal) (units int64, ok bool) {
	if !required.IsPositive() {
		return 0, false
	}
	if !stock.IsPositive() {
		return 0, true
	}
	quotient, _ := stock.QuoRem(required, 0)
	return quotient.IntPart(), true
}

// ComponentLine is one included line of a calculation, kept for the audit
// breakdown and the API.
type ComponentLine struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Kind      ComponentKind   `json:"kind"`
	Label     string          `json:"label"`
	Stock     decimal.Decimal `json:"stock"`
	Required  decimal.Decimal `json:"required"`
	Buildable int64           `json:"buildable"`
	Origin    StockOrigin     `json:"origin"`
}

// StockCalculation accumulates the bottleneck over component lines.
// The zero value is ready to use.
type StockCalculation struct {
	lines      []ComponentLine
	bottleneck int
}

// Include adds a line with the given component stock. It returns false when
// the line's requirement is not positive and it was skipped.
func (c *StockCalculation) Include(item BOMItem, stock decimal.Decimal, origin StockOrigin) bool {
	required := item.RequiredQuantity()
	units, ok := BuildableUnits(stock, required)
	if !ok {
		return false
	}
	c.lines = append(c.lines, ComponentLine{
		ItemID:    item.ID,
		Kind:      item.Component.Kind(),
		Label:     item.Component.Label(),
		Stock:     stock,
		Required:  required,
		Buildable: units,
		Origin:    origin,
	})
	if len(c.lines) == 1 || units < c.lines[c.bottleneck].Buildable {
		c.bottleneck = len(c.lines) - 1
	}
	return true
}

// Result returns the effective stock. ok is false when no line was included.
func (c *StockCalculation) Result() (effective int64, ok bool) {
	if len(c.lines) == 0 {
		return 0, false
	}
	return c.lines[c.bottleneck].Buildable, true
}

// Bottleneck returns the limiting line
func (c *StockCalculation) Bottleneck() (ComponentLine, bool) {
	if len(c.lines) == 0 {
		return ComponentLine{}, false
	}
	return c.lines[c.bottleneck], true
}

// Lines returns a copy of the included lines
func (c *StockCalculation) Lines() []ComponentLine {
	out := make([]ComponentLine, len(c.lines))
	copy(out, c.lines)
	return out
}
