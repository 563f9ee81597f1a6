// Command carttool drives a scripted cart session against a ticketing
// backend: load the active cart, print it, optionally add an entry and
// run the purchase flow. It exists to exercise the client end to end
// from a shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

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
	"github.com/discotek/discotek-go/pkg/logger"
	"github.com/discotek/discotek-go/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "carttool"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "carttool",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	var (
		userID  = flag.String("user", "", "user id when the token is opaque")
		eventID = flag.String("event", "", "event to add a ticket for")
		slotID  = flag.String("slot", "", "time slot of the entry")
		price   = flag.Float64("price", 0, "base unit price")
		mult    = flag.Float64("mult", 1, "slot price multiplier")
		qty     = flag.Int("qty", 1, "units to add")
		buy     = flag.Bool("buy", false, "run the purchase flow after adding")
	)
	flag.Parse()

	ctx := context.Background()

	sess, err := buildSession(cfg.API.Token, *userID)
	if err != nil {
		logg.Error(ctx, "failed to build session", err)
		os.Exit(1)
	}

	transport, err := rest.NewClient(cfg.API, logg, metrics.NewAPICallMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logg.Error(ctx, "failed to build transport", err)
		os.Exit(1)
	}

	orderClient, err := orders.NewClient(transport)
	if err != nil {
		logg.Error(ctx, "failed to build order client", err)
		os.Exit(1)
	}
	userClient, err := users.NewClient(transport)
	if err != nil {
		logg.Error(ctx, "failed to build user client", err)
		os.Exit(1)
	}
	eventClient, err := events.NewClient(transport)
	if err != nil {
		logg.Error(ctx, "failed to build event client", err)
		os.Exit(1)
	}
	ticketClient, err := tickets.NewClient(transport)
	if err != nil {
		logg.Error(ctx, "failed to build ticket client", err)
		os.Exit(1)
	}

	cartSvc, err := cart.NewService(sess, orderClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to build cart service", err)
		os.Exit(1)
	}
	flow, err := checkout.NewFlow(checkout.FlowParams{
		Session:       sess,
		Cart:          cartSvc,
		Users:         userClient,
		Events:        eventClient,
		Tickets:       ticketClient,
		Logger:        logg,
		RedirectDelay: cfg.Checkout.RedirectDelay,
	})
	if err != nil {
		logg.Error(ctx, "failed to build checkout flow", err)
		os.Exit(1)
	}

	cartSvc.Load(ctx)
	printCart(cartSvc)

	if *eventID != "" {
		outcome, err := cartSvc.Add(ctx, cart.AddInput{
			Kind:       enums.ItemKindTicket,
			EventID:    *eventID,
			SlotID:     *slotID,
			UnitPrice:  *price,
			Multiplier: *mult,
			Quantity:   *qty,
		})
		if err != nil {
			logg.Error(ctx, "failed to add item", err)
			os.Exit(1)
		}
		for _, failure := range outcome.Failed() {
			logg.Error(logg.WithField(ctx, "ref", failure.Ref), "cart sync incomplete", failure.Err)
		}
		printCart(cartSvc)
	}

	if !*buy {
		return
	}

	result, err := flow.Purchase(ctx)
	if err != nil {
		logg.Error(logg.WithPhase(ctx, string(flow.Phase())), "purchase failed", err)
		if result == nil {
			os.Exit(1)
		}
		// Partial results still report what landed.
	}
	fmt.Printf("order %s completed, total %.2f, points earned %d\n", result.OrderID, result.Total, result.PointsEarned)
	for _, failure := range result.Units.Failed() {
		fmt.Printf("  pending unit: %s (%v)\n", failure.Ref, failure.Err)
	}
	if result.RedirectAfter > 0 {
		time.Sleep(result.RedirectAfter)
	}
}

func buildSession(token, userID string) (*session.Session, error) {
	if userID != "" {
		return session.NewStatic(token, userID)
	}
	return session.New(token)
}

func printCart(svc *cart.Service) {
	items := svc.Items()
	if len(items) == 0 {
		fmt.Println("cart is empty")
		return
	}
	fmt.Printf("cart (order %s):\n", svc.OrderID())
	for _, item := range items {
		fmt.Printf("  %s x%d %s event=%s slot=%s subtotal=%.2f\n",
			item.Kind, item.Quantity, item.ID, item.EventID, item.SlotID, item.Subtotal())
	}
	fmt.Printf("total: %.2f (%d units)\n", svc.Total(), svc.ItemCount())
}
