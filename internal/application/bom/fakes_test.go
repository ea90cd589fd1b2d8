package bom

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// fakePlatform is a stateful StockSource
// ---------------------------------------------------------------------------

type stockWrite struct {
	ExternalID int64
	VariantID  int64
	Update     integration.StockUpdate
}

type fakePlatform struct {
	mu            sync.Mutex
	products      map[int64]*integration.PlatformProduct
	variants      map[int64][]integration.PlatformVariant
	getErr        map[int64]error
	listErr       map[int64]error
	writeErr      error
	productWrites []stockWrite
	variantWrites []stockWrite
	getCalls      map[int64]int
	listCalls     map[int64]int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		products:  make(map[int64]*integration.PlatformProduct),
		variants:  make(map[int64][]integration.PlatformVariant),
		getErr:    make(map[int64]error),
		listErr:   make(map[int64]error),
		getCalls:  make(map[int64]int),
		listCalls: make(map[int64]int),
	}
}

func qty(v int64) *int64 { return &v }

func (p *fakePlatform) setProduct(externalID int64, stock *int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.products[externalID] = &integration.PlatformProduct{
		ExternalID:    externalID,
		ManageStock:   stock != nil,
		StockQuantity: stock,
	}
}

func (p *fakePlatform) setProductStatus(externalID int64, status integration.StockStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.products[externalID].StockStatus = status
}

func (p *fakePlatform) setVariant(parentID, variantID int64, stock *int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.products[parentID]; !ok {
		p.products[parentID] = &integration.PlatformProduct{ExternalID: parentID, Type: "variable"}
	}
	list := p.variants[parentID]
	for i := range list {
		if list[i].ExternalID == variantID {
			list[i].StockQuantity = stock
			return
		}
	}
	p.variants[parentID] = append(list, integration.PlatformVariant{
		ExternalID:       variantID,
		ParentExternalID: parentID,
		ManageStock:      stock != nil,
		StockQuantity:    stock,
	})
}

func (p *fakePlatform) removeVariant(parentID, variantID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.variants[parentID][:0]
	for _, v := range p.variants[parentID] {
		if v.ExternalID != variantID {
			list = append(list, v)
		}
	}
	p.variants[parentID] = list
}

func (p *fakePlatform) GetProduct(_ context.Context, _ uuid.UUID, externalID int64) (*integration.PlatformProduct, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getCalls[externalID]++
	if err := p.getErr[externalID]; err != nil {
		return nil, err
	}
	product, ok := p.products[externalID]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", integration.ErrPlatformNotFound, externalID)
	}
	cp := *product
	return &cp, nil
}

func (p *fakePlatform) ListVariants(_ context.Context, _ uuid.UUID, parentID int64) ([]integration.PlatformVariant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls[parentID]++
	if err := p.listErr[parentID]; err != nil {
		return nil, err
	}
	if _, ok := p.products[parentID]; !ok {
		return nil, fmt.Errorf("%w: product %d", integration.ErrPlatformNotFound, parentID)
	}
	out := make([]integration.PlatformVariant, len(p.variants[parentID]))
	copy(out, p.variants[parentID])
	return out, nil
}

func (p *fakePlatform) UpdateProductStock(_ context.Context, _ uuid.UUID, externalID int64, update integration.StockUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	product, ok := p.products[externalID]
	if !ok {
		return fmt.Errorf("%w: product %d", integration.ErrPlatformNotFound, externalID)
	}
	p.productWrites = append(p.productWrites, stockWrite{ExternalID: externalID, Update: update})
	product.StockQuantity = qty(update.Quantity)
	product.ManageStock = update.ManageStock
	product.StockStatus = update.Status
	return nil
}

func (p *fakePlatform) UpdateVariantStock(_ context.Context, _ uuid.UUID, parentID, variantID int64, update integration.StockUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	for i, v := range p.variants[parentID] {
		if v.ExternalID == variantID {
			p.variantWrites = append(p.variantWrites, stockWrite{ExternalID: parentID, VariantID: variantID, Update: update})
			p.variants[parentID][i].StockQuantity = qty(update.Quantity)
			p.variants[parentID][i].StockStatus = update.Status
			return nil
		}
	}
	return fmt.Errorf("%w: variant %d", integration.ErrPlatformNotFound, variantID)
}

func (p *fakePlatform) writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.productWrites) + len(p.variantWrites)
}

var _ integration.StockSource = (*fakePlatform)(nil)

// ---------------------------------------------------------------------------
// fakeStore implements the BOM, product and audit repositories in memory
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*bom.Product
	variants  map[uuid.UUID]*bom.ProductVariant
	internals map[uuid.UUID]*bom.InternalItem
	boms      []*bom.BillOfMaterials
	audits    []bom.StockAuditEntry
	auditErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  make(map[uuid.UUID]*bom.Product),
		variants:  make(map[uuid.UUID]*bom.ProductVariant),
		internals: make(map[uuid.UUID]*bom.InternalItem),
	}
}

func (s *fakeStore) cloneComponent(c bom.Component) bom.Component {
	switch v := c.(type) {
	case bom.ExternalProductComponent:
		p := *s.products[v.Product.ID]
		return bom.ExternalProductComponent{Product: &p}
	case bom.ExternalVariantComponent:
		p := *s.products[v.Product.ID]
		variant := *s.variants[v.Variant.ID]
		return bom.ExternalVariantComponent{Product: &p, Variant: &variant}
	case bom.InternalItemComponent:
		i := *s.internals[v.Item.ID]
		return bom.InternalItemComponent{Item: &i}
	}
	return c
}

func (s *fakeStore) FindForResolution(_ context.Context, tenantID, productID uuid.UUID, variantID int64) ([]bom.BillOfMaterials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bom.BillOfMaterials, 0)
	for _, b := range s.boms {
		if b.TenantID != tenantID || b.ProductID != productID {
			continue
		}
		if b.VariantID != variantID && b.VariantID != bom.DefaultVariantID {
			continue
		}
		cp := *b
		cp.Items = make([]bom.BOMItem, 0)
		for _, item := range b.Items {
			if !item.IsActive {
				continue
			}
			item.Component = s.cloneComponent(item.Component)
			cp.Items = append(cp.Items, item)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *fakeStore) ListSyncTargets(_ context.Context, tenantID uuid.UUID) ([]bom.SyncTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bom.SyncTarget, 0)
	for _, b := range s.boms {
		if b.TenantID == tenantID && len(b.ActiveItems()) > 0 {
			out = append(out, b.Target())
		}
	}
	return out, nil
}

func (s *fakeStore) FindTargetsByComponent(_ context.Context, tenantID uuid.UUID, lookup bom.ComponentLookup) ([]bom.SyncTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bom.SyncTarget, 0)
	for _, b := range s.boms {
		if b.TenantID != tenantID {
			continue
		}
		for _, item := range b.ActiveItems() {
			if matchesLookup(item.Component, lookup) {
				out = append(out, b.Target())
				break
			}
		}
	}
	return out, nil
}

func matchesLookup(c bom.Component, lookup bom.ComponentLookup) bool {
	switch v := c.(type) {
	case bom.ExternalProductComponent:
		return v.Product.ID == lookup.ProductID
	case bom.ExternalVariantComponent:
		if lookup.VariantID != nil {
			return v.Variant.ID == *lookup.VariantID
		}
		return v.Product.ID == lookup.ProductID
	}
	return false
}

func (s *fakeStore) DeactivateItem(_ context.Context, itemID uuid.UUID, reason bom.DeactivationReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.boms {
		for i := range b.Items {
			if b.Items[i].ID == itemID {
				b.Items[i].Deactivate(reason, time.Now())
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (s *fakeStore) DeactivateItemsForTarget(_ context.Context, target bom.SyncTarget, reason bom.DeactivationReason) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, b := range s.boms {
		if b.Target() != target {
			continue
		}
		for i := range b.Items {
			if b.Items[i].Deactivate(reason, time.Now()) {
				n++
			}
		}
	}
	return n, nil
}

func (s *fakeStore) Save(_ context.Context, b *bom.BillOfMaterials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boms = append(s.boms, b)
	return nil
}

func (s *fakeStore) ListTenantIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	out := make([]uuid.UUID, 0)
	for _, b := range s.boms {
		if _, ok := seen[b.TenantID]; !ok {
			seen[b.TenantID] = struct{}{}
			out = append(out, b.TenantID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *fakeStore) FindByID(_ context.Context, tenantID, id uuid.UUID) (*bom.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) FindByExternalID(_ context.Context, tenantID uuid.UUID, externalID int64) (*bom.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.TenantID == tenantID && p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *fakeStore) FindVariantByExternalID(_ context.Context, tenantID, productID uuid.UUID, externalID int64) (*bom.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.variants {
		if v.TenantID == tenantID && v.ProductID == productID && v.ExternalID == externalID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}


func (s *fakeStore) SaveProduct(_ context.Context, p *bom.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *fakeStore) SaveVariant(_ context.Context, v *bom.ProductVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
	return nil
}

func (s *fakeStore) SaveInternalItem(_ context.Context, i *bom.InternalItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.internals[i.ID] = i
	return nil
}

func (s *fakeStore) UpdateProductStockCache(_ context.Context, tenantID, productID uuid.UUID, quantity *int64, status integration.StockStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.TenantID != tenantID {
		return shared.ErrNotFound
	}
	p.Stock.Observe(quantity, status)
	return nil
}

func (s *fakeStore) UpdateVariantStockCache(_ context.Context, tenantID, variantID uuid.UUID, quantity *int64, status integration.StockStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[variantID]
	if !ok || v.TenantID != tenantID {
		return shared.ErrNotFound
	}
	v.Stock.Observe(quantity, status)
	return nil
}

func (s *fakeStore) Append(_ context.Context, entry *bom.StockAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditErr != nil {
		return s.auditErr
	}
	s.audits = append(s.audits, *entry)
	return nil
}

func (s *fakeStore) ListByProduct(_ context.Context, tenantID, productID uuid.UUID, limit int) ([]bom.StockAuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bom.StockAuditEntry, 0)
	for _, e := range s.audits {
		if e.TenantID == tenantID && e.ProductID == productID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) cachedProductStock(id uuid.UUID) *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock.Quantity
}

func (s *fakeStore) cachedProductStatus(id uuid.UUID) integration.StockStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock.Status
}

func (s *fakeStore) auditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audits)
}

// productRepo adapts fakeStore to bom.ProductRepository, whose Save collides
// with the BOM repository's Save.
type productRepo struct{ *fakeStore }

func (r productRepo) Save(ctx context.Context, p *bom.Product) error {
	return r.fakeStore.SaveProduct(ctx, p)
}

var (
	_ bom.BOMRepository        = (*fakeStore)(nil)
	_ bom.ProductRepository    = productRepo{}
	_ bom.StockAuditRepository = (*fakeStore)(nil)
)

// ---------------------------------------------------------------------------
// fakeLocker
// ---------------------------------------------------------------------------

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	for {
		release, ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil || ok {
			return release, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (l *fakeLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

var _ bom.SyncLocker = (*fakeLocker)(nil)

// ---------------------------------------------------------------------------
// fixture wires a tenant with a Gift Box composite
// ---------------------------------------------------------------------------

type fixture struct {
	tenantID   uuid.UUID
	store      *fakeStore
	platform   *fakePlatform
	locker     *fakeLocker
	calculator *StockCalculator
	service    *SyncService
}

func newFixture() *fixture {
	f := &fixture{
		tenantID: uuid.New(),
		store:    newFakeStore(),
		platform: newFakePlatform(),
		locker:   newFakeLocker(),
	}
	products := productRepo{f.store}
	f.calculator = NewStockCalculator(NewResolver(f.store, nil), f.store, products, f.platform, nil)
	f.service = NewSyncService(f.calculator, products, f.store, f.store, f.platform, f.locker, nil)
	return f
}

func (f *fixture) product(externalID int64, name string, cached *int64) *bom.Product {
	p, err := bom.NewProduct(f.tenantID, externalID, name)
	if err != nil {
		panic(err)
	}
	p.Stock.Quantity = cached
	_ = f.store.SaveProduct(context.Background(), p)
	return p
}

func (f *fixture) variant(parent *bom.Product, externalID int64, cached *int64) *bom.ProductVariant {
	v, err := bom.NewProductVariant(f.tenantID, parent.ID, externalID)
	if err != nil {
		panic(err)
	}
	v.Stock.Quantity = cached
	_ = f.store.SaveVariant(context.Background(), v)
	return v
}

func (f *fixture) internal(name string, stock string) *bom.InternalItem {
	i := bom.NewInternalItem(f.tenantID, name, name, decimal.RequireFromString(stock))
	_ = f.store.SaveInternalItem(context.Background(), i)
	return i
}

type line struct {
	component bom.Component
	quantity  string
	waste     string
}

func (f *fixture) bom(composite *bom.Product, variantID int64, lines ...line) *bom.BillOfMaterials {
	b, err := bom.NewBillOfMaterials(f.tenantID, composite.ID, variantID)
	if err != nil {
		panic(err)
	}
	for _, l := range lines {
		waste := l.waste
		if waste == "" {
			waste = "0"
		}
		item, err := bom.NewBOMItem(l.component, decimal.RequireFromString(l.quantity), decimal.RequireFromString(waste))
		if err != nil {
			panic(err)
		}
		b.AddItem(item)
	}
	_ = f.store.Save(context.Background(), b)
	return b
}

// giftBox builds Gift Box = 2 x Ribbon + 1 x Card with Ribbon=41 and Card=15
// live, and the platform reporting 10 for the box.
func (f *fixture) giftBox() (*bom.Product, *bom.Product, *bom.Product) {
	box := f.product(100, "Gift Box", qty(10))
	ribbon := f.product(200, "Ribbon", qty(41))
	card := f.product(300, "Card", qty(15))
	f.platform.setProduct(100, qty(10))
	f.platform.setProduct(200, qty(41))
	f.platform.setProduct(300, qty(15))
	f.bom(box, 0,
		line{component: bom.ExternalProductComponent{Product: ribbon}, quantity: "2"},
		line{component: bom.ExternalProductComponent{Product: card}, quantity: "1"},
	)
	return box, ribbon, card
}

func (f *fixture) target(p *bom.Product, variantID int64) bom.SyncTarget {
	return bom.SyncTarget{TenantID: f.tenantID, ProductID: p.ID, VariantID: variantID}
}

var errBoom = errors.New("boom")
