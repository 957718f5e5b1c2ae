package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, businessID, productID int64) (Product, error)
	ListProducts(ctx context.Context, businessID int64, categoryID *int64) ([]Product, error)
	History(ctx context.Context, businessID, productID int64, asOf time.Time) (History, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against recording the same document twice.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	DefaultMethod Method
	// ReportWorkers bounds concurrent product valuations in a report.
	ReportWorkers int
}

// Service values stock and prices sales from purchase and sale history.
type Service struct {
	repo        RepositoryPort
	cache       *LayerCache
	audit       AuditPort
	idempotency IdempotencyPort
	method      Method
	workers     int
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. cache and audit may be nil.
func NewService(repo RepositoryPort, cache *LayerCache, audit AuditPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.DefaultMethod == "" {
		cfg.DefaultMethod = MethodFIFO
	}
	if cfg.ReportWorkers <= 0 {
		cfg.ReportWorkers = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		audit:   audit,
		method:  cfg.DefaultMethod,
		workers: cfg.ReportWorkers,
		logger:  logger,
		now:     time.Now,
	}
}

// WithIdempotency attaches a store keyed by document reference.
func (s *Service) WithIdempotency(store IdempotencyPort) *Service {
	s.idempotency = store
	return s
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) resolve(method Method, asOf time.Time) (Method, time.Time, error) {
	if method == "" {
		method = s.method
	}
	if method != MethodFIFO && method != MethodWeightedAverage {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return method, dateOnly(asOf), nil
}

func (s *Service) history(ctx context.Context, businessID, productID int64, asOf time.Time) (History, error) {
	return s.repo.History(ctx, businessID, productID, asOf)
}

func (s *Service) fifo(ctx context.Context, businessID, productID int64, asOf time.Time) (FIFOState, error) {
	return s.cache.Fetch(ctx, businessID, productID, asOf, func(ctx context.Context) (FIFOState, error) {
		h, err := s.history(ctx, businessID, productID, asOf)
		if err != nil {
			return FIFOState{}, err
		}
		return ReplayFIFO(h), nil
	})
}

// CalculateInventoryValue values the remaining stock of a product as of a date.
func (s *Service) CalculateInventoryValue(ctx context.Context, scope shared.Scope, productID int64, method Method, asOf time.Time) (Valuation, error) {
	if err := scope.Validate(); err != nil {
		return Valuation{}, err
	}
	method, asOf, err := s.resolve(method, asOf)
	if err != nil {
		return Valuation{}, err
	}
	product, err := s.repo.GetProduct(ctx, scope.BusinessID, productID)
	if err != nil {
		return Valuation{}, err
	}
	return s.value(ctx, product, method, asOf)
}

func (s *Service) value(ctx context.Context, product Product, method Method, asOf time.Time) (Valuation, error) {
	v := Valuation{
		ProductID:   product.ID,
		ProductName: product.Name,
		SKU:         product.SKU,
		Method:      method,
		AsOf:        asOf,
	}
	switch method {
	case MethodWeightedAverage:
		h, err := s.history(ctx, product.BusinessID, product.ID, asOf)
		if err != nil {
			return Valuation{}, err
		}
		avg := WeightedAverage(h)
		v.Quantity = avg.OnHand()
		v.UnitCost = avg.UnitCost
		v.TotalValue = avg.Value()
	default:
		state, err := s.fifo(ctx, product.BusinessID, product.ID, asOf)
		if err != nil {
			return Valuation{}, err
		}
		v.Quantity = state.Quantity()
		v.UnitCost = state.UnitCost()
		v.TotalValue = state.Value()
	}
	return v, nil
}

// CalculateCOGS prices soldQty of a product against the current history.
// Quantity beyond the available layers costs nothing.
func (s *Service) CalculateCOGS(ctx context.Context, scope shared.Scope, productID int64, soldQty decimal.Decimal, method Method) (decimal.Decimal, error) {
	cost, err := s.QuoteSale(ctx, scope, productID, soldQty, method, time.Time{})
	if err != nil {
		return decimal.Zero, err
	}
	return cost.Cost, nil
}

// QuoteSale prices a prospective sale as of a date without recording it.
func (s *Service) QuoteSale(ctx context.Context, scope shared.Scope, productID int64, qty decimal.Decimal, method Method, asOf time.Time) (SaleCost, error) {
	if err := scope.Validate(); err != nil {
		return SaleCost{}, err
	}
	if !qty.IsPositive() {
		return SaleCost{}, ErrInvalidQuantity
	}
	method, asOf, err := s.resolve(method, asOf)
	if err != nil {
		return SaleCost{}, err
	}
	if _, err := s.repo.GetProduct(ctx, scope.BusinessID, productID); err != nil {
		return SaleCost{}, err
	}
	if method == MethodWeightedAverage {
		h, err := s.history(ctx, scope.BusinessID, productID, asOf)
		if err != nil {
			return SaleCost{}, err
		}
		avg := WeightedAverage(h)
		return SaleCost{Date: asOf, Quantity: qty, Cost: qty.Mul(avg.UnitCost), UnitCost: avg.UnitCost, Shortfall: decimal.Zero}, nil
	}
	state, err := s.fifo(ctx, scope.BusinessID, productID, asOf)
	if err != nil {
		return SaleCost{}, err
	}
	sc := state.Cost(qty)
	sc.Date = asOf
	return sc, nil
}

// SaleCosts returns the FIFO cost charged to every sale line up to asOf.
func (s *Service) SaleCosts(ctx context.Context, scope shared.Scope, productID int64, asOf time.Time) ([]SaleCost, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	_, asOf, err := s.resolve(MethodFIFO, asOf)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetProduct(ctx, scope.BusinessID, productID); err != nil {
		return nil, err
	}
	state, err := s.fifo(ctx, scope.BusinessID, productID, asOf)
	if err != nil {
		return nil, err
	}
	return state.Sales, nil
}

// ValuationReport values every active product with stock on hand, grouped
// by category.
func (s *Service) ValuationReport(ctx context.Context, scope shared.Scope, filter ReportFilter) (ValuationReport, error) {
	if err := scope.Validate(); err != nil {
		return ValuationReport{}, err
	}
	method, asOf, err := s.resolve(filter.Method, filter.AsOf)
	if err != nil {
		return ValuationReport{}, err
	}
	products, err := s.repo.ListProducts(ctx, scope.BusinessID, filter.CategoryID)
	if err != nil {
		return ValuationReport{}, err
	}

	var (
		mu    sync.Mutex
		items = make([]ReportItem, 0, len(products))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, product := range products {
		g.Go(func() error {
			v, err := s.value(gctx, product, method, asOf)
			if err != nil {
				return fmt.Errorf("inventory: value product %d: %w", product.ID, err)
			}
			if !v.Quantity.IsPositive() {
				return nil
			}
			category := product.CategoryName
			if product.CategoryID == nil || category == "" {
				category = UncategorizedLabel
			}
			mu.Lock()
			items = append(items, ReportItem{
				Valuation:     v,
				Category:      category,
				PurchasePrice: product.PurchasePrice,
				SalesPrice:    product.SalesPrice,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ValuationReport{}, err
	}
	return buildReport(asOf, method, items), nil
}

func buildReport(asOf time.Time, method Method, items []ReportItem) ValuationReport {
	report := ValuationReport{
		AsOf:    asOf,
		Method:  method,
		Summary: ReportSummary{Quantity: decimal.Zero, TotalValue: decimal.Zero},
	}
	groups := make(map[string]*ReportCategory)
	for _, item := range items {
		grp, ok := groups[item.Category]
		if !ok {
			grp = &ReportCategory{Name: item.Category, Quantity: decimal.Zero, TotalValue: decimal.Zero}
			groups[item.Category] = grp
		}
		grp.Items = append(grp.Items, item)
		grp.Quantity = grp.Quantity.Add(item.Quantity)
		grp.TotalValue = grp.TotalValue.Add(item.TotalValue)
		report.Summary.Products++
		report.Summary.Quantity = report.Summary.Quantity.Add(item.Quantity)
		report.Summary.TotalValue = report.Summary.TotalValue.Add(item.TotalValue)
	}
	for _, grp := range groups {
		sort.Slice(grp.Items, func(i, j int) bool {
			if grp.Items[i].ProductName != grp.Items[j].ProductName {
				return grp.Items[i].ProductName < grp.Items[j].ProductName
			}
			return grp.Items[i].ProductID < grp.Items[j].ProductID
		})
		report.Categories = append(report.Categories, *grp)
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		a, b := report.Categories[i].Name, report.Categories[j].Name
		if (a == UncategorizedLabel) != (b == UncategorizedLabel) {
			return b == UncategorizedLabel
		}
		return a < b
	})
	return report
}

// StockMovements lists purchases and sales between from and to with running
// quantity and value. Sales are priced by the given method. The running
// totals start from the first recorded movement, not from.
func (s *Service) StockMovements(ctx context.Context, scope shared.Scope, productID int64, method Method, from, to time.Time) ([]Movement, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	method, to, err := s.resolve(method, to)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && dateOnly(from).After(to) {
		return nil, fmt.Errorf("%w: start after end", shared.ErrInvalidInput)
	}
	if _, err := s.repo.GetProduct(ctx, scope.BusinessID, productID); err != nil {
		return nil, err
	}
	h, err := s.history(ctx, scope.BusinessID, productID, to)
	if err != nil {
		return nil, err
	}
	var (
		fifo FIFOState
		avg  Average
	)
	if method == MethodFIFO {
		fifo = ReplayFIFO(h)
	} else {
		avg = WeightedAverage(h)
	}
	return buildMovements(h, method, fifo, avg, from), nil
}

func buildMovements(h History, method Method, fifo FIFOState, avg Average, from time.Time) []Movement {
	type event struct {
		date     time.Time
		purchase bool
		id       int64
		m        Movement
	}
	var events []event
	for _, p := range h.Purchases {
		net := p.Net()
		if !net.IsPositive() {
			continue
		}
		events = append(events, event{date: p.Date, purchase: true, id: p.ID, m: Movement{
			Date: p.Date, Type: MovementPurchase, Reference: p.Reference,
			QuantityIn: net, QuantityOut: decimal.Zero, UnitCost: p.UnitCost, TotalCost: net.Mul(p.UnitCost),
		}})
	}
	for _, sl := range h.Sales {
		net := sl.Net()
		if net.IsZero() {
			continue
		}
		m := Movement{Date: sl.Date, Type: MovementSale, Reference: sl.Reference, QuantityIn: decimal.Zero, QuantityOut: net}
		if method == MethodFIFO {
			sc, _ := fifo.CostOf(sl.ID)
			m.UnitCost = sc.UnitCost
			m.TotalCost = sc.Cost
		} else {
			m.UnitCost = avg.UnitCost
			m.TotalCost = net.Mul(avg.UnitCost)
		}
		events = append(events, event{date: sl.Date, id: sl.ID, m: m})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].date.Equal(events[j].date) {
			return events[i].date.Before(events[j].date)
		}
		if events[i].purchase != events[j].purchase {
			return events[i].purchase
		}
		return events[i].id < events[j].id
	})

	qty, value := decimal.Zero, decimal.Zero
	out := make([]Movement, 0, len(events))
	for _, e := range events {
		m := e.m
		if m.Type == MovementPurchase {
			qty = qty.Add(m.QuantityIn)
			value = value.Add(m.TotalCost)
		} else {
			qty = qty.Sub(m.QuantityOut)
			value = value.Sub(m.TotalCost)
		}
		m.BalanceQuantity = qty
		m.BalanceValue = value
		if !from.IsZero() && m.Date.Before(dateOnly(from)) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// RecordPurchase stores a purchased quantity and invalidates cached layers.
// The layer version is bumped before and after the write; a failure before
// aborts the write, a failure after returns the stored line with
// ErrStaleLayers.
func (s *Service) RecordPurchase(ctx context.Context, scope shared.Scope, input PurchaseInput) (PurchaseLine, error) {
	if err := scope.Validate(); err != nil {
		return PurchaseLine{}, err
	}
	if !input.Quantity.IsPositive() {
		return PurchaseLine{}, ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() {
		return PurchaseLine{}, ErrInvalidUnitCost
	}
	line := PurchaseLine{
		BusinessID: scope.BusinessID,
		ProductID:  input.ProductID,
		Date:       dateOnly(s.dateOr(input.Date)),
		Reference:  input.Reference,
		Quantity:   input.Quantity,
		Returned:   decimal.Zero,
		UnitCost:   input.UnitCost,
	}
	if err := s.invalidate(ctx, scope.BusinessID, input.ProductID); err != nil {
		return PurchaseLine{}, err
	}
	err := s.once(ctx, scope, "purchase", input.Reference, input.Line, input.ProductID, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockProduct(ctx, scope.BusinessID, input.ProductID); err != nil {
			return err
		}
		id, err := tx.InsertPurchase(ctx, line)
		line.ID = id
		return err
	})
	if err != nil {
		return PurchaseLine{}, err
	}
	if err := s.afterWrite(ctx, scope, input.ProductID, input.ActorID, "inventory.purchase", line.ID, input.Quantity); err != nil {
		return line, err
	}
	return line, nil
}

// RecordSale stores a sold quantity and invalidates cached layers. Stock
// sufficiency is not checked here.
func (s *Service) RecordSale(ctx context.Context, scope shared.Scope, input SaleInput) (SaleLine, error) {
	if err := scope.Validate(); err != nil {
		return SaleLine{}, err
	}
	if !input.Quantity.IsPositive() {
		return SaleLine{}, ErrInvalidQuantity
	}
	line := SaleLine{
		BusinessID: scope.BusinessID,
		ProductID:  input.ProductID,
		Date:       dateOnly(s.dateOr(input.Date)),
		Reference:  input.Reference,
		Quantity:   input.Quantity,
		Returned:   decimal.Zero,
	}
	if err := s.invalidate(ctx, scope.BusinessID, input.ProductID); err != nil {
		return SaleLine{}, err
	}
	err := s.once(ctx, scope, "sale", input.Reference, input.Line, input.ProductID, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockProduct(ctx, scope.BusinessID, input.ProductID); err != nil {
			return err
		}
		id, err := tx.InsertSale(ctx, line)
		line.ID = id
		return err
	})
	if err != nil {
		return SaleLine{}, err
	}
	if err := s.afterWrite(ctx, scope, input.ProductID, input.ActorID, "inventory.sale", line.ID, input.Quantity); err != nil {
		return line, err
	}
	return line, nil
}

// RecordPurchaseReturn adds returned quantity to a purchase line.
func (s *Service) RecordPurchaseReturn(ctx context.Context, scope shared.Scope, input ReturnInput) (PurchaseLine, error) {
	if err := scope.Validate(); err != nil {
		return PurchaseLine{}, err
	}
	if !input.Quantity.IsPositive() {
		return PurchaseLine{}, ErrInvalidQuantity
	}
	var line PurchaseLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		line, err = tx.AddPurchaseReturn(ctx, scope.BusinessID, input.LineID, input.Quantity)
		return err
	})
	if err != nil {
		return PurchaseLine{}, err
	}
	if err := s.afterWrite(ctx, scope, line.ProductID, input.ActorID, "inventory.purchase_return", line.ID, input.Quantity); err != nil {
		return line, err
	}
	return line, nil
}

// RecordSaleReturn adds returned quantity to a sale line.
func (s *Service) RecordSaleReturn(ctx context.Context, scope shared.Scope, input ReturnInput) (SaleLine, error) {
	if err := scope.Validate(); err != nil {
		return SaleLine{}, err
	}
	if !input.Quantity.IsPositive() {
		return SaleLine{}, ErrInvalidQuantity
	}
	var line SaleLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		line, err = tx.AddSaleReturn(ctx, scope.BusinessID, input.LineID, input.Quantity)
		return err
	})
	if err != nil {
		return SaleLine{}, err
	}
	if err := s.afterWrite(ctx, scope, line.ProductID, input.ActorID, "inventory.sale_return", line.ID, input.Quantity); err != nil {
		return line, err
	}
	return line, nil
}

// Invalidate drops cached layers of a product.
func (s *Service) Invalidate(ctx context.Context, scope shared.Scope, productID int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, scope.BusinessID, productID)
}

// Warm replays and caches the layers of every active product as of asOf.
func (s *Service) Warm(ctx context.Context, scope shared.Scope, asOf time.Time) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	_, asOf, err := s.resolve(MethodFIFO, asOf)
	if err != nil {
		return 0, err
	}
	products, err := s.repo.ListProducts(ctx, scope.BusinessID, nil)
	if err != nil {
		return 0, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, product := range products {
		g.Go(func() error {
			_, err := s.fifo(gctx, scope.BusinessID, product.ID, asOf)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(products), nil
}

func (s *Service) dateOr(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// once runs fn in a transaction, guarded by the idempotency store when the
// document carries a reference.
func (s *Service) once(ctx context.Context, scope shared.Scope, kind, reference string, line int, productID int64, fn func(context.Context, TxRepository) error) error {
	var key string
	if s.idempotency != nil && reference != "" {
		key = shared.IdempotencyKey(scope.BusinessID, "inventory", fmt.Sprintf("%s:%s:%d:%d", kind, reference, line, productID))
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return err
		}
	}
	if err := s.repo.WithTx(ctx, fn); err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	return nil
}

const (
	invalidateAttempts = 3
	invalidateTimeout  = 5 * time.Second
)

// invalidate bumps the layer version of a product, retrying Redis failures.
// It ignores cancellation of ctx.
func (s *Service) invalidate(ctx context.Context, businessID, productID int64) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	var err error
	for attempt := 1; attempt <= invalidateAttempts; attempt++ {
		if err = s.cache.Invalidate(ctx, businessID, productID); err == nil {
			return nil
		}
		s.logger.Warn("invalidate layer cache",
			slog.Int64("business_id", businessID),
			slog.Int64("product_id", productID),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		if attempt == invalidateAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: product %d: %w", ErrStaleLayers, productID, ctx.Err())
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: product %d: %w", ErrStaleLayers, productID, err)
}

func (s *Service) afterWrite(ctx context.Context, scope shared.Scope, productID, actorID int64, action string, lineID int64, qty decimal.Decimal) error {
	stale := s.invalidate(ctx, scope.BusinessID, productID)
	if s.audit == nil {
		return stale
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		BusinessID: scope.BusinessID,
		ActorID:    actorID,
		Action:     action,
		Entity:     "inventory_line",
		EntityID:   fmt.Sprintf("%d", lineID),
		Meta: map[string]any{
			"product_id": productID,
			"quantity":   qty.String(),
		},
		At: s.now(),
	})
	if err != nil {
		s.logger.Warn("audit inventory write", slog.String("action", action), slog.Any("error", err))
	}
	return stale
}
