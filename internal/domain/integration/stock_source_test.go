package integration

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	t.Run("direct sentinel", func(t *testing.T) {
		assert.True(t, IsNotFound(ErrPlatformNotFound))
	})

	t.Run("wrapped sentinel", func(t *testing.T) {
		err := fmt.Errorf("%w: HTTP 404", ErrPlatformNotFound)
		assert.True(t, IsNotFound(err))
	})

	t.Run("other platform errors", func(t *testing.T) {
		assert.False(t, IsNotFound(ErrPlatformUnavailable))
		assert.False(t, IsNotFound(fmt.Errorf("%w: HTTP 500", ErrPlatformRequestFailed)))
		assert.False(t, IsNotFound(nil))
	})
}

func TestStockStatusFor(t *testing.T) {
	assert.Equal(t, StockStatusInStock, StockStatusFor(15))
	assert.Equal(t, StockStatusOutOfStock, StockStatusFor(0))
	assert.Equal(t, StockStatusOutOfStock, StockStatusFor(-3))
}

func TestStockStatus_IsValid(t *testing.T) {
	assert.True(t, StockStatusInStock.IsValid())
	assert.True(t, StockStatusOutOfStock.IsValid())
	assert.True(t, StockStatusBackorder.IsValid())
	assert.False(t, StockStatus("sold").IsValid())
}

func TestNewManagedStockUpdate(t *testing.T) {
	update := NewManagedStockUpdate(15)
	assert.Equal(t, int64(15), update.Quantity)
	assert.True(t, update.ManageStock)
	assert.Equal(t, StockStatusInStock, update.Status)

	empty := NewManagedStockUpdate(0)
	assert.True(t, empty.ManageStock)
	assert.Equal(t, StockStatusOutOfStock, empty.Status)
}

func TestFindVariant(t *testing.T) {
	variants := []PlatformVariant{{ExternalID: 11}, {ExternalID: 12}}

	v, ok := FindVariant(variants, 12)
	assert.True(t, ok)
	assert.Equal(t, int64(12), v.ExternalID)

	_, ok = FindVariant(variants, 99)
	assert.False(t, ok)
}

func TestPlatformProduct_HasVariants(t *testing.T) {
	assert.True(t, (&PlatformProduct{Type: "variable"}).HasVariants())
	assert.True(t, (&PlatformProduct{Type: "simple", VariationIDs: []int64{3}}).HasVariants())
	assert.False(t, (&PlatformProduct{Type: "simple"}).HasVariants())
}
