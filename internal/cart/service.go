package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/discotek/discotek-go/internal/orders"
	"github.com/discotek/discotek-go/internal/session"
	"github.com/discotek/discotek-go/pkg/enums"
	pkgerrors "github.com/discotek/discotek-go/pkg/errors"
	"github.com/discotek/discotek-go/pkg/logger"
	"github.com/discotek/discotek-go/pkg/types"
	"github.com/go-playground/validator/v10"
)

type ordersAPI interface {
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
	Create(ctx context.Context, order *orders.Order) (*orders.Order, error)
	Update(ctx context.Context, order *orders.Order) (*orders.Order, error)
	Delete(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) (*orders.Order, error)
	ListLines(ctx context.Context, orderID string) ([]orders.Line, error)
	CreateLine(ctx context.Context, line *orders.Line) (*orders.Line, error)
	UpdateLine(ctx context.Context, line *orders.Line) (*orders.Line, error)
	DeleteLine(ctx context.Context, id string) error
}

// Service owns the client-visible cart and keeps it reconciled with the
// user's EN_PROCESO order. One Service exists per session; it is not
// shared across users.
type Service struct {
	sess     *session.Session
	orders   ordersAPI
	logg     *logger.Logger
	validate *validator.Validate
	clock    func() time.Time

	mu          sync.Mutex
	items       []LineItem
	orderID     string
	checkingOut bool
	subs        map[int]func([]LineItem)
	nextSubID   int
}

// NewService builds a cart orchestrator bound to one session.
func NewService(sess *session.Session, ordersClient ordersAPI, logg *logger.Logger) (*Service, error) {
	if sess == nil {
		return nil, fmt.Errorf("session required")
	}
	if ordersClient == nil {
		return nil, fmt.Errorf("orders client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		sess:     sess,
		orders:   ordersClient,
		logg:     logg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    time.Now,
	}, nil
}

// AddInput is the payload for adding units to the cart.
type AddInput struct {
	Kind       enums.ItemKind          `validate:"required,oneof=ENTRADA RESERVA_VIP"`
	EventID    string                  `validate:"required"`
	SlotID     string                  `validate:"required"`
	ZoneID     string                  `validate:"required_if=Kind RESERVA_VIP,excluded_if=Kind ENTRADA"`
	Bottles    []types.BottleSelection `validate:"excluded_if=Kind ENTRADA"`
	UnitPrice  float64                 `validate:"gte=0"`
	Multiplier float64                 `validate:"gt=0"`
	Quantity   int                     `validate:"gte=1"`
}

// CheckoutResult reports a completed purchase: the finished order id and
// the snapshot of items it covered.
type CheckoutResult struct {
	OrderID string
	Total   float64
	Items   []LineItem
}

// Subscribe registers a listener invoked synchronously with the full
// item set after every published mutation. The returned function
// unsubscribes it.
func (s *Service) Subscribe(fn func([]LineItem)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = map[int]func([]LineItem){}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Load rehydrates the cart from the backend. It is fail-safe by
// contract: any error resets the cart to empty and is only logged.
func (s *Service) Load(ctx context.Context) {
	userID := s.sess.UserID()
	if userID == "" {
		s.reset()
		return
	}
	ctx = s.logg.WithUserID(ctx, userID)

	all, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "load cart: list orders failed, resetting", err)
		s.reset()
		return
	}

	current := adoptInProgress(all)
	if current == nil {
		s.reset()
		return
	}
	if n := countInProgress(all); n > 1 {
		s.logg.Warn(s.logg.WithOrderID(ctx, current.ID), fmt.Sprintf("user has %d EN_PROCESO orders, adopting most recent", n))
	}

	lines, err := s.orders.ListLines(ctx, current.ID)
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, current.ID), "load cart: list lines failed, resetting", err)
		s.reset()
		return
	}

	items := make([]LineItem, 0, len(lines))
	for _, line := range lines {
		item, err := decodeLine(line)
		if err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, current.ID), "load cart: undecodable line payload, resetting", err)
			s.reset()
			return
		}
		items = append(items, item)
	}

	s.mu.Lock()
	s.items = items
	s.orderID = current.ID
	s.mu.Unlock()
	s.publish()
}

// Add merges the input into the cart by the Matching Rule, publishes the
// optimistic state and reconciles with the backend. The returned outcome
// reports per-line sync results; callers must not block the UI on it.
func (s *Service) Add(ctx context.Context, input AddInput) (*types.BatchOutcome, error) {
	if s.sess.UserID() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Usuario no autenticado")
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart item")
	}

	item := LineItem{
		ID:         newItemID(s.clock()),
		Kind:       input.Kind,
		EventID:    input.EventID,
		SlotID:     input.SlotID,
		ZoneID:     input.ZoneID,
		Bottles:    append([]types.BottleSelection(nil), input.Bottles...),
		UnitPrice:  input.UnitPrice,
		Multiplier: input.Multiplier,
		Quantity:   input.Quantity,
	}

	s.mu.Lock()
	merged := false
	for idx := range s.items {
		if SameLine(s.items[idx], item) {
			s.items[idx].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, item)
	}
	s.mu.Unlock()
	s.publish()

	return s.persist(ctx)
}

// UpdateQuantity sets the quantity of one item and reconciles. Bounds
// are the caller's responsibility; the orchestrator enforces none.
func (s *Service) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*types.BatchOutcome, error) {
	s.mu.Lock()
	if s.orderID == "" {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "No hay pedido activo")
	}
	found := false
	for idx := range s.items {
		if s.items[idx].ID == itemID {
			s.items[idx].Quantity = quantity
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Item no encontrado")
	}
	s.publish()

	return s.persist(ctx)
}

// Remove drops one item. Removing the last item clears the whole cart:
// a zero-line order is not a valid persisted state, so the order row is
// deleted rather than left empty.
func (s *Service) Remove(ctx context.Context, itemID string) (*types.BatchOutcome, error) {
	s.mu.Lock()
	idx := -1
	for i := range s.items {
		if s.items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Item no encontrado")
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	remaining := len(s.items)
	orderID := s.orderID
	s.mu.Unlock()
	s.publish()

	if remaining == 0 {
		return &types.BatchOutcome{}, s.Clear(ctx)
	}
	if orderID == "" {
		return &types.BatchOutcome{}, nil
	}

	outcome := &types.BatchOutcome{}
	if removed.LineID != "" {
		ref := "DELETE line " + removed.LineID
		if err := s.orders.DeleteLine(ctx, removed.LineID); err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, orderID), "remove item: delete line failed", err)
			outcome.AddFailure(ref, err)
		} else {
			outcome.AddSuccess(ref)
		}
	}
	if err := s.syncHeader(ctx); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID), "remove item: header sync failed", err)
		outcome.AddFailure("PUT order "+orderID, err)
	}
	return outcome, nil
}

// Clear empties the cart locally and deletes the backing order. The
// backend cascades line removal; deletion is how a cart is cancelled.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	orderID := s.orderID
	s.items = nil
	s.orderID = ""
	s.mu.Unlock()
	s.publish()

	if orderID == "" {
		return nil
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order "+orderID)
	}
	return nil
}

// Checkout completes the backing order and empties the local cart. A
// second call while one is pending is rejected; nothing else guards
// concurrent mutation, so callers should stop cart edits first.
func (s *Service) Checkout(ctx context.Context) (*CheckoutResult, error) {
	s.mu.Lock()
	if s.orderID == "" {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "No hay pedido activo")
	}
	if s.checkingOut {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "ya hay una compra en curso")
	}
	s.checkingOut = true
	orderID := s.orderID
	snapshot := copyItems(s.items)
	total := totalOf(s.items)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.checkingOut = false
		s.mu.Unlock()
	}()

	if _, err := s.orders.Complete(ctx, orderID); err != nil {
		// Local state is intentionally kept: the order is still
		// EN_PROCESO server-side and the cart remains retryable.
		return nil, err
	}

	s.mu.Lock()
	s.items = nil
	s.orderID = ""
	s.mu.Unlock()
	s.publish()

	return &CheckoutResult{OrderID: orderID, Total: total, Items: snapshot}, nil
}

// Total sums every line's subtotal: unit price times multiplier times
// quantity, plus bottle costs on VIP lines.
func (s *Service) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalOf(s.items)
}

// ItemCount sums quantities across lines.
func (s *Service) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Items returns a copy of the current cart contents.
func (s *Service) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyItems(s.items)
}

// OrderID returns the backing order id, empty when no order exists.
func (s *Service) OrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderID
}

func (s *Service) reset() {
	s.mu.Lock()
	s.items = nil
	s.orderID = ""
	s.mu.Unlock()
	s.publish()
}

func (s *Service) publish() {
	s.mu.Lock()
	snapshot := copyItems(s.items)
	listeners := make([]func([]LineItem), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(copyItems(snapshot))
	}
}

func totalOf(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

func copyItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Bottles = append([]types.BottleSelection(nil), items[i].Bottles...)
	}
	return out
}

func adoptInProgress(all []orders.Order) *orders.Order {
	var latest *orders.Order
	for i := range all {
		if all[i].Status != enums.OrderStatusInProgress {
			continue
		}
		if latest == nil || all[i].CreatedAt.After(latest.CreatedAt) {
			latest = &all[i]
		}
	}
	return latest
}

func countInProgress(all []orders.Order) int {
	var n int
	for _, order := range all {
		if order.Status == enums.OrderStatusInProgress {
			n++
		}
	}
	return n
}
