package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/discotek/discotek-go/internal/cart"
	"github.com/discotek/discotek-go/internal/events"
	"github.com/discotek/discotek-go/internal/session"
	"github.com/discotek/discotek-go/internal/tickets"
	"github.com/discotek/discotek-go/internal/users"
	"github.com/discotek/discotek-go/pkg/enums"
	pkgerrors "github.com/discotek/discotek-go/pkg/errors"
	"github.com/discotek/discotek-go/pkg/logger"
	"github.com/discotek/discotek-go/pkg/types"
	"github.com/shopspring/decimal"
)

// pointsRate is the loyalty accrual: half a point per currency unit,
// floored.
var pointsRate = decimal.NewFromFloat(0.5)

type cartOrchestrator interface {
	Items() []cart.LineItem
	Total() float64
	Checkout(ctx context.Context) (*cart.CheckoutResult, error)
}

type userAPI interface {
	Get(ctx context.Context, id string) (*users.User, error)
	Update(ctx context.Context, user *users.User) (*users.User, error)
}

type eventAPI interface {
	Get(ctx context.Context, id string) (*events.Event, error)
}

type ticketAPI interface {
	CreateTicket(ctx context.Context, ticket *tickets.Ticket) (*tickets.Ticket, error)
	CreateReservation(ctx context.Context, reservation *tickets.Reservation) (*tickets.Reservation, error)
	CreateBottleDetail(ctx context.Context, detail *tickets.BottleDetail) (*tickets.BottleDetail, error)
}

// Flow drives the multi-phase purchase: local validation, event
// re-verification, wallet charge, points award, order completion and
// per-unit ticket creation, with compensating rollback for the money
// steps.
type Flow struct {
	sess          *session.Session
	cart          cartOrchestrator
	users         userAPI
	events        eventAPI
	tickets       ticketAPI
	logg          *logger.Logger
	clock         func() time.Time
	redirectDelay time.Duration

	mu       sync.Mutex
	phase    Phase
	inFlight bool
}

// FlowParams collects the collaborators of a checkout flow.
type FlowParams struct {
	Session       *session.Session
	Cart          cartOrchestrator
	Users         userAPI
	Events        eventAPI
	Tickets       ticketAPI
	Logger        *logger.Logger
	RedirectDelay time.Duration
}

// NewFlow builds a checkout flow bound to one session.
func NewFlow(params FlowParams) (*Flow, error) {
	if params.Session == nil {
		return nil, fmt.Errorf("session required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart orchestrator required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user client required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("event client required")
	}
	if params.Tickets == nil {
		return nil, fmt.Errorf("ticket client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Flow{
		sess:          params.Session,
		cart:          params.Cart,
		users:         params.Users,
		events:        params.Events,
		tickets:       params.Tickets,
		logg:          params.Logger,
		clock:         time.Now,
		redirectDelay: params.RedirectDelay,
	}, nil
}

// Result reports a finished purchase.
type Result struct {
	OrderID      string
	Total        float64
	PointsEarned int64
	Units        *types.BatchOutcome

	// RedirectAfter is how long the caller should keep the
	// confirmation visible before navigating away.
	RedirectAfter time.Duration
}

// Phase returns the flow's current phase.
func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase == "" {
		return PhaseIdle
	}
	return f.phase
}

func (f *Flow) setPhase(phase Phase) {
	f.mu.Lock()
	f.phase = phase
	f.mu.Unlock()
}

// Purchase runs the whole checkout. Validation failures leave the flow
// in IDLE without network cost; failures from charging onward trigger
// the compensating rollback. Unit-creation failures after the order is
// completed do not roll anything back: the purchase is already paid and
// final, so they surface as a partial-failure result instead.
func (f *Flow) Purchase(ctx context.Context) (*Result, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "ya hay una compra en curso")
	}
	f.inFlight = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight = false
		f.mu.Unlock()
	}()

	ctx = f.logg.WithUserID(ctx, f.sess.UserID())

	// VALIDATING: pure local checks, fail fast with no network cost.
	f.setPhase(PhaseValidating)
	items := f.cart.Items()
	total := f.cart.Total()
	if len(items) == 0 {
		f.setPhase(PhaseIdle)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "el carrito está vacío")
	}
	user, err := f.currentUser(ctx)
	if err != nil {
		f.setPhase(PhaseIdle)
		return nil, err
	}
	if user.WalletBalance < total {
		f.setPhase(PhaseIdle)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "saldo insuficiente")
	}

	f.setPhase(PhaseVerifyingEvents)
	if err := f.verifyEvents(ctx, items); err != nil {
		f.setPhase(PhaseError)
		return nil, err
	}

	prevBalance := user.WalletBalance
	prevPoints := user.Points
	earned := pointsEarned(total)

	var checkoutResult *cart.CheckoutResult
	steps := []step{
		{
			phase: PhaseCharging,
			run: func(ctx context.Context) error {
				charged := *user
				charged.WalletBalance = subtract(prevBalance, total)
				updated, err := f.users.Update(ctx, &charged)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge wallet")
				}
				f.sess.SetSnapshot(updated)
				*user = *updated
				return nil
			},
			compensate: func(ctx context.Context) error {
				restored := *user
				restored.WalletBalance = prevBalance
				updated, err := f.users.Update(ctx, &restored)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore wallet balance")
				}
				f.sess.SetSnapshot(updated)
				*user = *updated
				return nil
			},
		},
		{
			phase: PhaseAwardingPoints,
			run: func(ctx context.Context) error {
				awarded := *user
				awarded.Points = prevPoints + int(earned)
				updated, err := f.users.Update(ctx, &awarded)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "award points")
				}
				f.sess.SetSnapshot(updated)
				*user = *updated
				return nil
			},
			compensate: func(ctx context.Context) error {
				// Points may not have been advanced when this runs; only
				// restore after re-checking the persisted value.
				fresh, err := f.users.Get(ctx, user.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-check points")
				}
				if fresh.Points <= prevPoints {
					return nil
				}
				fresh.Points = prevPoints
				updated, err := f.users.Update(ctx, fresh)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore points")
				}
				f.sess.SetSnapshot(updated)
				*user = *updated
				return nil
			},
		},
		{
			phase: PhaseCompletingOrder,
			run: func(ctx context.Context) error {
				result, err := f.cart.Checkout(ctx)
				if err != nil {
					return err
				}
				checkoutResult = result
				return nil
			},
			// Completion is terminal: the backend offers no way to
			// un-complete a paid order, so there is no compensation and
			// later failures are reported as partial instead.
		},
	}

	if err := runSaga(ctx, f.logg, f.setPhase, steps); err != nil {
		return nil, err
	}

	f.setPhase(PhaseCreatingTickets)
	units := f.createUnits(ctx, user.ID, checkoutResult.Items)

	result := &Result{
		OrderID:       checkoutResult.OrderID,
		Total:         checkoutResult.Total,
		PointsEarned:  earned,
		Units:         units,
		RedirectAfter: f.redirectDelay,
	}
	if !units.OK() {
		f.setPhase(PhaseError)
		return result, pkgerrors.Wrap(pkgerrors.CodePartial, units.Err(), "error al procesar la compra, contacte con soporte")
	}
	f.setPhase(PhaseSuccess)
	return result, nil
}

// verifyEvents re-checks every distinct event referenced by the cart.
// Fetches run concurrently; a fetch error counts as invalid
// (fail-closed). Invalid events abort the purchase by name so the user
// can self-correct.
func (f *Flow) verifyEvents(ctx context.Context, items []cart.LineItem) error {
	ids := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		if _, ok := seen[item.EventID]; ok {
			continue
		}
		seen[item.EventID] = struct{}{}
		ids = append(ids, item.EventID)
	}

	now := f.clock()
	invalid := make([]string, 0)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			event, err := f.events.Get(ctx, id)
			if err != nil {
				f.logg.Error(f.logg.WithField(ctx, "event_id", id), "verify events: fetch failed, treating as unavailable", err)
				mu.Lock()
				invalid = append(invalid, id)
				mu.Unlock()
				return
			}
			if !event.Available(now) {
				mu.Lock()
				invalid = append(invalid, event.Name)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if len(invalid) > 0 {
		sort.Strings(invalid)
		return pkgerrors.New(pkgerrors.CodeStale, "eventos no disponibles: "+strings.Join(invalid, ", ")).
			WithDetails(invalid)
	}
	return nil
}

// createUnits expands every line into quantity independent units: one
// ticket row per unit, plus a reservation per VIP ticket and one bottle
// detail per selected bottle type. Unit tasks fan out concurrently and
// a failing unit never aborts its siblings.
func (f *Flow) createUnits(ctx context.Context, userID string, items []cart.LineItem) *types.BatchOutcome {
	outcome := &types.BatchOutcome{}
	var wg sync.WaitGroup
	for _, item := range items {
		for unit := 1; unit <= item.Quantity; unit++ {
			wg.Add(1)
			go func(item cart.LineItem, unit int) {
				defer wg.Done()
				ref := fmt.Sprintf("unit %d/%d of item %s", unit, item.Quantity, item.ID)
				if err := f.createUnit(ctx, userID, item); err != nil {
					f.logg.Error(ctx, "create unit failed: "+ref, err)
					outcome.AddFailure(ref, err)
					return
				}
				outcome.AddSuccess(ref)
			}(item, unit)
		}
	}
	wg.Wait()
	return outcome
}

func (f *Flow) createUnit(ctx context.Context, userID string, item cart.LineItem) error {
	ticket, err := f.tickets.CreateTicket(ctx, &tickets.Ticket{
		UserID:  userID,
		EventID: item.EventID,
		SlotID:  item.SlotID,
		Status:  enums.TicketStatusActive,
		Price:   item.UnitTotal(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ticket")
	}
	if item.Kind != enums.ItemKindVIPReservation {
		return nil
	}

	reservation, err := f.tickets.CreateReservation(ctx, &tickets.Reservation{
		TicketID: ticket.ID,
		ZoneID:   item.ZoneID,
		Total:    ticket.Price + types.BottlesCost(item.Bottles),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation for ticket "+ticket.ID)
	}
	for _, bottle := range item.Bottles {
		detail := &tickets.BottleDetail{
			ReservationID: reservation.ID,
			BottleID:      bottle.BottleID,
			Quantity:      bottle.Quantity,
			UnitPrice:     bottle.UnitPrice,
		}
		if _, err := f.tickets.CreateBottleDetail(ctx, detail); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bottle detail for reservation "+reservation.ID)
		}
	}
	return nil
}

func (f *Flow) currentUser(ctx context.Context) (*users.User, error) {
	if snap := f.sess.Snapshot(); snap != nil {
		return snap, nil
	}
	user, err := f.users.Get(ctx, f.sess.UserID())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	f.sess.SetSnapshot(user)
	return user, nil
}

// pointsEarned applies the loyalty rule: floor(total × 0.5).
func pointsEarned(total float64) int64 {
	return decimal.NewFromFloat(total).Mul(pointsRate).Floor().IntPart()
}

func subtract(balance, amount float64) float64 {
	result, _ := decimal.NewFromFloat(balance).Sub(decimal.NewFromFloat(amount)).Float64()
	return result
}
