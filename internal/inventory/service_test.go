package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	mu           sync.Mutex
	products     map[int64]Product
	purchases    []PurchaseLine
	sales        []SaleLine
	nextID       int64
	historyCalls int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product)}
}

func (r *memoryRepo) addProduct(p Product) {
	p.IsActive = true
	r.products[p.ID] = p
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetProduct(_ context.Context, businessID, productID int64) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.product(businessID, productID)
}

func (r *memoryRepo) product(businessID, productID int64) (Product, error) {
	p, ok := r.products[productID]
	if !ok || p.BusinessID != businessID {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListProducts(_ context.Context, businessID int64, categoryID *int64) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Product
	for _, p := range r.products {
		if p.BusinessID != businessID || !p.IsActive {
			continue
		}
		if categoryID != nil && (p.CategoryID == nil || *p.CategoryID != *categoryID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) History(_ context.Context, businessID, productID int64, asOf time.Time) (History, error) {
	atomic.AddInt64(&r.historyCalls, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	var h History
	for _, p := range r.purchases {
		if p.BusinessID == businessID && p.ProductID == productID && !p.Date.After(asOf) {
			h.Purchases = append(h.Purchases, p)
		}
	}
	for _, s := range r.sales {
		if s.BusinessID == businessID && s.ProductID == productID && !s.Date.After(asOf) {
			h.Sales = append(h.Sales, s)
		}
	}
	sort.SliceStable(h.Purchases, func(i, j int) bool { return h.Purchases[i].Date.Before(h.Purchases[j].Date) })
	sort.SliceStable(h.Sales, func(i, j int) bool { return h.Sales[i].Date.Before(h.Sales[j].Date) })
	return h, nil
}

func (tx *memoryTx) LockProduct(_ context.Context, businessID, productID int64) (Product, error) {
	return tx.repo.product(businessID, productID)
}

func (tx *memoryTx) InsertPurchase(_ context.Context, line PurchaseLine) (int64, error) {
	tx.repo.nextID++
	line.ID = tx.repo.nextID
	tx.repo.purchases = append(tx.repo.purchases, line)
	return line.ID, nil
}

func (tx *memoryTx) InsertSale(_ context.Context, line SaleLine) (int64, error) {
	tx.repo.nextID++
	line.ID = tx.repo.nextID
	tx.repo.sales = append(tx.repo.sales, line)
	return line.ID, nil
}

func (tx *memoryTx) AddPurchaseReturn(_ context.Context, businessID, lineID int64, qty decimal.Decimal) (PurchaseLine, error) {
	for i, l := range tx.repo.purchases {
		if l.ID == lineID && l.BusinessID == businessID {
			if l.Returned.Add(qty).GreaterThan(l.Quantity) {
				return PurchaseLine{}, ErrReturnExceedsQuantity
			}
			tx.repo.purchases[i].Returned = l.Returned.Add(qty)
			return tx.repo.purchases[i], nil
		}
	}
	return PurchaseLine{}, ErrLineNotFound
}

func (tx *memoryTx) AddSaleReturn(_ context.Context, businessID, lineID int64, qty decimal.Decimal) (SaleLine, error) {
	for i, l := range tx.repo.sales {
		if l.ID == lineID && l.BusinessID == businessID {
			if l.Returned.Add(qty).GreaterThan(l.Quantity) {
				return SaleLine{}, ErrReturnExceedsQuantity
			}
			tx.repo.sales[i].Returned = l.Returned.Add(qty)
			return tx.repo.sales[i], nil
		}
	}
	return SaleLine{}, ErrLineNotFound
}

type memoryIdempotency struct {
	keys map[string]struct{}
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = struct{}{}
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

const (
	widgetID int64 = 10
	gadgetID int64 = 11
	boltID   int64 = 12
	foreign  int64 = 13
)

var scope = shared.NewScope(1, 0)

func newTestService(t *testing.T) (*Service, *memoryRepo, *miniredis.Miniredis) {
	t.Helper()
	hardware := int64(7)
	repo := newMemoryRepo()
	repo.addProduct(Product{ID: widgetID, BusinessID: 1, SKU: "W-1", Name: "Widget", CategoryID: &hardware, CategoryName: "Hardware"})
	repo.addProduct(Product{ID: gadgetID, BusinessID: 1, SKU: "G-1", Name: "Gadget"})
	repo.addProduct(Product{ID: boltID, BusinessID: 1, SKU: "B-1", Name: "Bolt", CategoryID: &hardware, CategoryName: "Hardware"})
	repo.addProduct(Product{ID: foreign, BusinessID: 2, SKU: "X-1", Name: "Other"})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewService(repo, NewLayerCache(client, time.Minute), nil, ServiceConfig{}, nil)
	svc.WithNow(func() time.Time { return day(20) })
	return svc, repo, mr
}

func seedWidget(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Date: day(1), Reference: "PB-1", Quantity: d("10"), UnitCost: d("2")})
	require.NoError(t, err)
	_, err = svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Date: day(2), Reference: "PB-2", Quantity: d("5"), UnitCost: d("3")})
	require.NoError(t, err)
	_, err = svc.RecordSale(ctx, scope, SaleInput{ProductID: widgetID, Date: day(3), Reference: "SI-1", Quantity: d("12")})
	require.NoError(t, err)
}

func TestCalculateInventoryValueFIFO(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedWidget(t, svc)

	v, err := svc.CalculateInventoryValue(context.Background(), scope, widgetID, MethodFIFO, time.Time{})
	require.NoError(t, err)
	assert.True(t, v.Quantity.Equal(d("3")))
	assert.True(t, v.UnitCost.Equal(d("3")))
	assert.True(t, v.TotalValue.Equal(d("9")))
	assert.Equal(t, MethodFIFO, v.Method)
	assert.Equal(t, day(20), v.AsOf)
}

func TestCalculateInventoryValueWeightedAverage(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedWidget(t, svc)

	v, err := svc.CalculateInventoryValue(context.Background(), scope, widgetID, MethodWeightedAverage, time.Time{})
	require.NoError(t, err)
	rate := d("35").Div(d("15"))
	assert.True(t, v.UnitCost.Equal(rate))
	assert.True(t, v.Quantity.Equal(d("3")))
	assert.True(t, v.TotalValue.Equal(d("3").Mul(rate)))
}

func TestCalculateInventoryValueAsOf(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedWidget(t, svc)

	v, err := svc.CalculateInventoryValue(context.Background(), scope, widgetID, MethodFIFO, day(1).Add(15*time.Hour))
	require.NoError(t, err)
	assert.True(t, v.Quantity.Equal(d("10")))
	assert.True(t, v.TotalValue.Equal(d("20")))
}

func TestCalculateInventoryValueRejectsForeignProduct(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CalculateInventoryValue(context.Background(), scope, foreign, MethodFIFO, time.Time{})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.CalculateCOGS(context.Background(), scope, 999, d("1"), MethodFIFO)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestCalculateInventoryValueRejectsUnknownMethod(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CalculateInventoryValue(context.Background(), scope, widgetID, Method("LIFO"), time.Time{})
	require.ErrorIs(t, err, ErrInvalidMethod)
}

func TestCalculateCOGS(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Date: day(1), Quantity: d("10"), UnitCost: d("2")})
	require.NoError(t, err)
	_, err = svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Date: day(2), Quantity: d("5"), UnitCost: d("3")})
	require.NoError(t, err)

	fifo, err := svc.CalculateCOGS(ctx, scope, widgetID, d("12"), MethodFIFO)
	require.NoError(t, err)
	assert.True(t, fifo.Equal(d("26")))

	avg, err := svc.CalculateCOGS(ctx, scope, widgetID, d("12"), MethodWeightedAverage)
	require.NoError(t, err)
	assert.True(t, avg.Equal(d("12").Mul(d("35").Div(d("15")))))

	short, err := svc.CalculateCOGS(ctx, scope, widgetID, d("20"), "")
	require.NoError(t, err)
	assert.True(t, short.Equal(d("35")))

	_, err = svc.CalculateCOGS(ctx, scope, widgetID, decimal.Zero, MethodFIFO)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestLayerCacheServesUntilInvalidated(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedWidget(t, svc)
	ctx := context.Background()

	_, err := svc.CalculateInventoryValue(ctx, scope, widgetID, MethodFIFO, time.Time{})
	require.NoError(t, err)
	_, err = svc.CalculateInventoryValue(ctx, scope, widgetID, MethodFIFO, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&repo.historyCalls))

	// a write made outside the service is invisible until invalidated
	repo.mu.Lock()
	repo.purchases = append(repo.purchases, PurchaseLine{ID: 99, BusinessID: 1, ProductID: widgetID, Date: day(4), Quantity: d("1"), Returned: decimal.Zero, UnitCost: d("7")})
	repo.mu.Unlock()
	v, err := svc.CalculateInventoryValue(ctx, scope, widgetID, MethodFIFO, time.Time{})
	require.NoError(t, err)
	assert.True(t, v.Quantity.Equal(d("3")))

	require.NoError(t, svc.Invalidate(ctx, scope, widgetID))
	v, err = svc.CalculateInventoryValue(ctx, scope, widgetID, MethodFIFO, time.Time{})
	require.NoError(t, err)
	assert.True(t, v.Quantity.Equal(d("4")))
	assert.True(t, v.TotalValue.Equal(d("16")))
}

func TestRecordingInvalidatesLayers(t *testing.T) {
	svc, _, mr := newTestService(t)
	seedWidget(t, svc)
	ctx := context.Background()

	_, err := svc.CalculateInventoryValue(ctx, scope, widgetID, MethodFIFO, time.Time{})
	require.NoError(t, err)
	before, err := mr.Get(versionKey(1, widgetID))
	require.NoError(t, err)

	_, err = svc.RecordSale(ctx, scope, SaleInput{ProductID: widgetID, Date: day(5), Quantity: d("1")})
	require.NoError(t, err)
	after, err := mr.Get(versionKey(1, widgetID))
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	v, err := svc.CalculateInventoryValue(ctx, scope, widgetID, MethodFIFO, time.Time{})
	require.NoError(t, err)
	assert.True(t, v.Quantity.Equal(d("2")))
}

func TestCacheDisabledWithoutClient(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(Product{ID: widgetID, BusinessID: 1, Name: "Widget"})
	svc := NewService(repo, nil, nil, ServiceConfig{DefaultMethod: MethodWeightedAverage}, nil)
	_, err := svc.RecordPurchase(context.Background(), scope, PurchaseInput{ProductID: widgetID, Date: day(1), Quantity: d("2"), UnitCost: d("5")})
	require.NoError(t, err)

	v, err := svc.CalculateInventoryValue(context.Background(), scope, widgetID, "", day(2))
	require.NoError(t, err)
	assert.Equal(t, MethodWeightedAverage, v.Method)
	assert.True(t, v.TotalValue.Equal(d("10")))
	require.NoError(t, svc.Invalidate(context.Background(), scope, widgetID))
}

func TestReturnsAreNetted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	bought, err := svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Date: day(1), Quantity: d("10"), UnitCost: d("2")})
	require.NoError(t, err)
	sold, err := svc.RecordSale(ctx, scope, SaleInput{ProductID: widgetID, Date: day(2), Quantity: d("6")})
	require.NoError(t, err)

	_, err = svc.RecordSaleReturn(ctx, scope, ReturnInput{LineID: sold.ID, Quantity: d("2")})
	require.NoError(t, err)
	_, err = svc.RecordPurchaseReturn(ctx, scope, ReturnInput{LineID: bought.ID, Quantity: d("1")})
	require.NoError(t, err)

	v, err := svc.CalculateInventoryValue(ctx, scope, widgetID, MethodFIFO, time.Time{})
	require.NoError(t, err)
	assert.True(t, v.Quantity.Equal(d("5")))

	_, err = svc.RecordSaleReturn(ctx, scope, ReturnInput{LineID: sold.ID, Quantity: d("5")})
	require.ErrorIs(t, err, ErrReturnExceedsQuantity)
	_, err = svc.RecordSaleReturn(ctx, scope, ReturnInput{LineID: 404, Quantity: d("1")})
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestRecordPurchaseIsIdempotentPerReference(t *testing.T) {
	svc, repo, _ := newTestService(t)
	svc.WithIdempotency(&memoryIdempotency{keys: map[string]struct{}{}})
	ctx := context.Background()
	in := PurchaseInput{ProductID: widgetID, Date: day(1), Reference: "PB-9", Quantity: d("1"), UnitCost: d("1")}

	_, err := svc.RecordPurchase(ctx, scope, in)
	require.NoError(t, err)
	_, err = svc.RecordPurchase(ctx, scope, in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Len(t, repo.purchases, 1)

	// a failed write releases its key
	retry := PurchaseInput{ProductID: foreign, Reference: "PB-10", Quantity: d("1"), UnitCost: d("1")}
	_, err = svc.RecordPurchase(ctx, scope, retry)
	require.ErrorIs(t, err, ErrProductNotFound)
	moved := repo.products[foreign]
	moved.BusinessID = 1
	repo.products[foreign] = moved
	_, err = svc.RecordPurchase(ctx, scope, retry)
	require.NoError(t, err)
}

func TestRecordValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Quantity: d("-1"), UnitCost: d("1")})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Quantity: d("1"), UnitCost: d("-1")})
	require.ErrorIs(t, err, ErrInvalidUnitCost)
	_, err = svc.RecordSale(ctx, scope, SaleInput{ProductID: widgetID, Quantity: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.RecordSale(ctx, shared.Scope{}, SaleInput{ProductID: widgetID, Quantity: d("1")})
	require.True(t, errors.Is(err, shared.ErrScopeRequired))
}

func TestValuationReportGroupsByCategory(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedWidget(t, svc)
	ctx := context.Background()
	_, err := svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: gadgetID, Date: day(1), Quantity: d("2"), UnitCost: d("50")})
	require.NoError(t, err)
	// bolts sold out, left out of the report
	_, err = svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: boltID, Date: day(1), Quantity: d("4"), UnitCost: d("1")})
	require.NoError(t, err)
	_, err = svc.RecordSale(ctx, scope, SaleInput{ProductID: boltID, Date: day(2), Quantity: d("4")})
	require.NoError(t, err)

	report, err := svc.ValuationReport(ctx, scope, ReportFilter{Method: MethodFIFO})
	require.NoError(t, err)
	require.Len(t, report.Categories, 2)
	assert.Equal(t, "Hardware", report.Categories[0].Name)
	assert.Equal(t, UncategorizedLabel, report.Categories[1].Name)
	require.Len(t, report.Categories[0].Items, 1)
	assert.Equal(t, "Widget", report.Categories[0].Items[0].ProductName)
	assert.Equal(t, 2, report.Summary.Products)
	assert.True(t, report.Summary.Quantity.Equal(d("5")))
	assert.True(t, report.Summary.TotalValue.Equal(d("109")))

	hardware := int64(7)
	filtered, err := svc.ValuationReport(ctx, scope, ReportFilter{CategoryID: &hardware})
	require.NoError(t, err)
	require.Len(t, filtered.Categories, 1)
	assert.True(t, filtered.Summary.TotalValue.Equal(d("9")))
}

func TestStockMovementsRunningBalance(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedWidget(t, svc)
	ctx := context.Background()

	moves, err := svc.StockMovements(ctx, scope, widgetID, MethodFIFO, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, moves, 3)
	assert.Equal(t, MovementSale, moves[2].Type)
	assert.True(t, moves[2].TotalCost.Equal(d("26")))
	assert.True(t, moves[2].BalanceQuantity.Equal(d("3")))
	assert.True(t, moves[2].BalanceValue.Equal(d("9")))

	windowed, err := svc.StockMovements(ctx, scope, widgetID, MethodWeightedAverage, day(2), day(3))
	require.NoError(t, err)
	require.Len(t, windowed, 2)
	assert.True(t, windowed[0].BalanceQuantity.Equal(d("15")))
	assert.True(t, windowed[1].UnitCost.Equal(d("35").Div(d("15"))))

	_, err = svc.StockMovements(ctx, scope, widgetID, MethodFIFO, day(5), day(3))
	require.Error(t, err)
}

func TestSaleCostsAndWarm(t *testing.T) {
	svc, _, mr := newTestService(t)
	seedWidget(t, svc)
	ctx := context.Background()

	costs, err := svc.SaleCosts(ctx, scope, widgetID, time.Time{})
	require.NoError(t, err)
	require.Len(t, costs, 1)
	assert.True(t, costs[0].Cost.Equal(d("26")))
	assert.Equal(t, "SI-1", costs[0].Reference)

	n, err := svc.Warm(ctx, scope, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, mr.Exists(layerKey(1, gadgetID, 0, day(20))))
}

func TestRecordLinesOfSameProductOnOneDocument(t *testing.T) {
	svc, repo, _ := newTestService(t)
	svc.WithIdempotency(&memoryIdempotency{keys: map[string]struct{}{}})
	ctx := context.Background()

	_, err := svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Date: day(1), Reference: "PB-1", Line: 1, Quantity: d("10"), UnitCost: d("2")})
	require.NoError(t, err)
	_, err = svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Date: day(1), Reference: "PB-1", Line: 2, Quantity: d("5"), UnitCost: d("3")})
	require.NoError(t, err)
	assert.Len(t, repo.purchases, 2)

	quoted, err := svc.CalculateCOGS(ctx, scope, widgetID, d("12"), MethodFIFO)
	require.NoError(t, err)
	assert.True(t, quoted.Equal(d("26")))

	sale := SaleInput{ProductID: widgetID, Date: day(2), Reference: "SI-1", Line: 1, Quantity: d("6")}
	_, err = svc.RecordSale(ctx, scope, sale)
	require.NoError(t, err)
	sale.Line = 2
	_, err = svc.RecordSale(ctx, scope, sale)
	require.NoError(t, err)
	_, err = svc.RecordSale(ctx, scope, sale)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	costs, err := svc.SaleCosts(ctx, scope, widgetID, time.Time{})
	require.NoError(t, err)
	require.Len(t, costs, 2)
	total := decimal.Zero
	for _, c := range costs {
		total = total.Add(c.Cost)
	}
	assert.True(t, total.Equal(quoted), "replayed %s quoted %s", total, quoted)
}

func TestRecordFailsWhenLayersCannotBeInvalidated(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()

	mr.SetError("ERR cache down")
	_, err := svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Date: day(1), Quantity: d("10"), UnitCost: d("2")})
	require.ErrorIs(t, err, ErrStaleLayers)
	assert.Empty(t, repo.purchases)

	mr.SetError("")
	_, err = svc.RecordPurchase(ctx, scope, PurchaseInput{ProductID: widgetID, Date: day(1), Quantity: d("10"), UnitCost: d("2")})
	require.NoError(t, err)
	sold, err := svc.RecordSale(ctx, scope, SaleInput{ProductID: widgetID, Date: day(2), Quantity: d("4")})
	require.NoError(t, err)

	// the return is stored but the caller learns the layers are stale
	mr.SetError("ERR cache down")
	line, err := svc.RecordSaleReturn(ctx, scope, ReturnInput{LineID: sold.ID, Quantity: d("1")})
	require.ErrorIs(t, err, ErrStaleLayers)
	assert.True(t, line.Returned.Equal(d("1")))

	_, err = svc.CalculateInventoryValue(ctx, scope, widgetID, MethodFIFO, time.Time{})
	require.Error(t, err)
}
