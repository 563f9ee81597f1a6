package apitest

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/discotek/discotek-go/internal/cart"
	"github.com/discotek/discotek-go/internal/checkout"
	"github.com/discotek/discotek-go/internal/events"
	"github.com/discotek/discotek-go/internal/orders"
	"github.com/discotek/discotek-go/internal/rest"
	"github.com/discotek/discotek-go/internal/session"
	"github.com/discotek/discotek-go/internal/tickets"
	"github.com/discotek/discotek-go/internal/users"
	"github.com/discotek/discotek-go/pkg/config"
	"github.com/discotek/discotek-go/pkg/enums"
	pkgerrors "github.com/discotek/discotek-go/pkg/errors"
	"github.com/discotek/discotek-go/pkg/logger"
	"github.com/discotek/discotek-go/pkg/metrics"
	"github.com/discotek/discotek-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "tok-integration"

type stack struct {
	backend *Server
	sess    *session.Session
	cart    *cart.Service
	flow    *checkout.Flow
}

func newStack(t *testing.T) *stack {
	t.Helper()

	backend := NewServer(testToken)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	logg := logger.New(logger.Options{ServiceName: "integration-test", Output: io.Discard})
	transport, err := rest.NewClient(config.APIConfig{
		BaseURL:        srv.URL,
		Token:          testToken,
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
	}, logg, metrics.NewAPICallMetrics(nil))
	require.NoError(t, err)

	orderClient, err := orders.NewClient(transport)
	require.NoError(t, err)
	userClient, err := users.NewClient(transport)
	require.NoError(t, err)
	eventClient, err := events.NewClient(transport)
	require.NoError(t, err)
	ticketClient, err := tickets.NewClient(transport)
	require.NoError(t, err)

	sess, err := session.NewStatic(testToken, "u-1")
	require.NoError(t, err)

	cartSvc, err := cart.NewService(sess, orderClient, logg)
	require.NoError(t, err)
	flow, err := checkout.NewFlow(checkout.FlowParams{
		Session:       sess,
		Cart:          cartSvc,
		Users:         userClient,
		Events:        eventClient,
		Tickets:       ticketClient,
		Logger:        logg,
		RedirectDelay: time.Second,
	})
	require.NoError(t, err)

	backend.SeedUser(users.User{ID: "u-1", Name: "Ana", Email: "ana@example.com", WalletBalance: 500, Points: 10})
	backend.SeedEvent(events.Event{ID: "e1", Name: "Noche Retro", Status: enums.EventStatusActive, VenueID: "d1", StartsAt: time.Now().Add(2 * time.Hour)})

	return &stack{backend: backend, sess: sess, cart: cartSvc, flow: flow}
}

func TestFullPurchaseOverHTTP(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	outcome, err := st.cart.Add(ctx, cart.AddInput{
		Kind: enums.ItemKindTicket, EventID: "e1", SlotID: "f1",
		UnitPrice: 10, Multiplier: 1.5, Quantity: 2,
	})
	require.NoError(t, err)
	require.True(t, outcome.OK(), "failures: %v", outcome.Failed())

	outcome, err = st.cart.Add(ctx, cart.AddInput{
		Kind: enums.ItemKindVIPReservation, EventID: "e1", SlotID: "f1", ZoneID: "z1",
		UnitPrice: 100, Multiplier: 1, Quantity: 1,
		Bottles: []types.BottleSelection{
			{BottleID: "b1", Name: "Cava", UnitPrice: 20, Quantity: 2},
			{BottleID: "b2", Name: "Ron", UnitPrice: 15, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.True(t, outcome.OK(), "failures: %v", outcome.Failed())

	orderID := st.cart.OrderID()
	require.NotEmpty(t, orderID)
	require.Len(t, st.backend.Lines(orderID), 2)

	result, err := st.flow.Purchase(ctx)
	require.NoError(t, err)
	assert.Equal(t, orderID, result.OrderID)
	assert.InEpsilon(t, 185.0, result.Total, 1e-9)
	assert.Equal(t, int64(92), result.PointsEarned)
	require.True(t, result.Units.OK(), "failures: %v", result.Units.Failed())
	assert.Equal(t, checkout.PhaseSuccess, st.flow.Phase())

	order, ok := st.backend.Order(orderID)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)

	user, ok := st.backend.User("u-1")
	require.True(t, ok)
	assert.InEpsilon(t, 315.0, user.WalletBalance, 1e-9)
	assert.Equal(t, 102, user.Points)

	issued := st.backend.Tickets()
	require.Len(t, issued, 3)
	reservations := st.backend.Reservations()
	require.Len(t, reservations, 1)
	assert.InEpsilon(t, 155.0, reservations[0].Total, 1e-9)
	require.Len(t, st.backend.BottleDetails(reservations[0].ID), 2)

	assert.Empty(t, st.cart.Items())
	assert.Empty(t, st.cart.OrderID())
}

func TestCartSurvivesReloadOverHTTP(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	_, err := st.cart.Add(ctx, cart.AddInput{
		Kind: enums.ItemKindTicket, EventID: "e1", SlotID: "f1",
		UnitPrice: 12, Multiplier: 2, Quantity: 3,
	})
	require.NoError(t, err)
	orderID := st.cart.OrderID()

	// A fresh service for the same user adopts the persisted order.
	logg := logger.New(logger.Options{ServiceName: "integration-test", Output: io.Discard})
	reloaded, err := cart.NewService(st.sess, mustOrderClient(t, st), logg)
	require.NoError(t, err)
	reloaded.Load(ctx)

	assert.Equal(t, orderID, reloaded.OrderID())
	items := reloaded.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.InEpsilon(t, 72.0, reloaded.Total(), 1e-9)
}

func TestPurchaseBlockedByFinishedEventOverHTTP(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	st.backend.SeedEvent(events.Event{ID: "e2", Name: "Cierre", Status: enums.EventStatusFinished, VenueID: "d1", StartsAt: time.Now().Add(-24 * time.Hour)})
	_, err := st.cart.Add(ctx, cart.AddInput{
		Kind: enums.ItemKindTicket, EventID: "e2", SlotID: "f1",
		UnitPrice: 10, Multiplier: 1, Quantity: 1,
	})
	require.NoError(t, err)

	_, err = st.flow.Purchase(ctx)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStale))
	assert.Contains(t, pkgerrors.As(err).Message(), "Cierre")

	// Nothing charged, order still open and retryable.
	user, _ := st.backend.User("u-1")
	assert.InEpsilon(t, 500.0, user.WalletBalance, 1e-9)
	order, ok := st.backend.Order(st.cart.OrderID())
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusInProgress, order.Status)
}

func TestClearCancelsOrderOverHTTP(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	_, err := st.cart.Add(ctx, cart.AddInput{
		Kind: enums.ItemKindTicket, EventID: "e1", SlotID: "f1",
		UnitPrice: 10, Multiplier: 1, Quantity: 1,
	})
	require.NoError(t, err)
	orderID := st.cart.OrderID()

	require.NoError(t, st.cart.Clear(ctx))
	_, ok := st.backend.Order(orderID)
	assert.False(t, ok, "cancelled cart must delete its order")
	assert.Empty(t, st.backend.Lines(orderID))
}

func mustOrderClient(t *testing.T, st *stack) *orders.Client {
	t.Helper()
	// Rebuild a transport against the same backend the stack uses.
	srv := httptest.NewServer(st.backend.Handler())
	t.Cleanup(srv.Close)
	logg := logger.New(logger.Options{ServiceName: "integration-test", Output: io.Discard})
	transport, err := rest.NewClient(config.APIConfig{
		BaseURL:        srv.URL,
		Token:          testToken,
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
	}, logg, metrics.NewAPICallMetrics(nil))
	require.NoError(t, err)
	client, err := orders.NewClient(transport)
	require.NoError(t, err)
	return client
}
