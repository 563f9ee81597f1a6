// Package apitest provides an in-memory rendition of the ticketing
// backend for integration tests. It speaks the same routes, JSON shapes
// and status codes as the real API so client packages can be exercised
// over real HTTP.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/discotek/discotek-go/internal/events"
	"github.com/discotek/discotek-go/internal/orders"
	"github.com/discotek/discotek-go/internal/tickets"
	"github.com/discotek/discotek-go/internal/users"
	"github.com/discotek/discotek-go/pkg/enums"
)

// Server holds the backend state behind one mutex. Handlers are simple
// enough that a single lock around each request body is fine for tests.
type Server struct {
	token string

	mu           sync.Mutex
	seq          int
	users        map[string]users.User
	orders       map[string]orders.Order
	lines        map[string]orders.Line
	events       map[string]events.Event
	tickets      map[string]tickets.Ticket
	reservations map[string]tickets.Reservation
	bottles      map[string][]tickets.BottleDetail

	router chi.Router
}

// NewServer builds an empty backend. A non-empty token makes every
// route demand the matching bearer header.
func NewServer(token string) *Server {
	s := &Server{
		token:        token,
		users:        map[string]users.User{},
		orders:       map[string]orders.Order{},
		lines:        map[string]orders.Line{},
		events:       map[string]events.Event{},
		tickets:      map[string]tickets.Ticket{},
		reservations: map[string]tickets.Reservation{},
		bottles:      map[string][]tickets.BottleDetail{},
	}

	r := chi.NewRouter()
	r.Use(s.requireBearer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/usuarios/{id}", s.getUser)
		r.Put("/usuarios/{id}", s.putUser)
		r.Get("/usuarios/{id}/pedidos", s.listUserOrders)

		r.Post("/pedidos", s.createOrder)
		r.Put("/pedidos/{id}", s.putOrder)
		r.Delete("/pedidos/{id}", s.deleteOrder)
		r.Put("/pedidos/{id}/completar", s.completeOrder)
		r.Get("/pedidos/{id}/lineas", s.listOrderLines)

		r.Post("/lineas", s.createLine)
		r.Put("/lineas/{id}", s.putLine)
		r.Delete("/lineas/{id}", s.deleteLine)

		r.Get("/eventos/{id}", s.getEvent)

		r.Post("/entradas", s.createTicket)
		r.Post("/reservas", s.createReservation)
		r.Post("/reservas/{id}/botellas", s.createBottleDetail)
	})
	s.router = r
	return s
}

// Handler exposes the backend as an http.Handler for httptest.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SeedUser installs a user record.
func (s *Server) SeedUser(user users.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// SeedEvent installs an event record.
func (s *Server) SeedEvent(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
}

// User returns the stored user, or false.
func (s *Server) User(id string) (users.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	return user, ok
}

// Order returns the stored order, or false.
func (s *Server) Order(id string) (orders.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	return order, ok
}

// Lines returns every stored line of the order, sorted by id.
func (s *Server) Lines(orderID string) []orders.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Line
	for _, line := range s.lines {
		if line.OrderID == orderID {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tickets returns every issued ticket.
func (s *Server) Tickets() []tickets.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tickets.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reservations returns every stored VIP reservation.
func (s *Server) Reservations() []tickets.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tickets.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BottleDetails returns the bottle rows of one reservation.
func (s *Server) BottleDetails(reservationID string) []tickets.BottleDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tickets.BottleDetail(nil), s.bottles[reservationID]...)
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeJSON(w, http.StatusUnauthorized, errBody("token inválido"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[chi.URLParam(r, "id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, errBody("usuario no encontrado"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) putUser(w http.ResponseWriter, r *http.Request) {
	var user users.User
	if !decode(w, r, &user) {
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		writeJSON(w, http.StatusNotFound, errBody("usuario no encontrado"))
		return
	}
	user.ID = id
	s.users[id] = user
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) listUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.Order{}
	for _, order := range s.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var order orders.Order
	if !decode(w, r, &order) {
		return
	}
	if order.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errBody("idUsuario requerido"))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = s.nextID("ped")
	if order.Status == "" {
		order.Status = enums.OrderStatusInProgress
	}
	s.orders[order.ID] = order
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) putOrder(w http.ResponseWriter, r *http.Request) {
	var order orders.Order
	if !decode(w, r, &order) {
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		writeJSON(w, http.StatusNotFound, errBody("pedido no encontrado"))
		return
	}
	order.ID = id
	s.orders[id] = order
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		writeJSON(w, http.StatusNotFound, errBody("pedido no encontrado"))
		return
	}
	delete(s.orders, id)
	// The real backend cascades line removal on order delete.
	for lineID, line := range s.lines {
		if line.OrderID == id {
			delete(s.lines, lineID)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) completeOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, errBody("pedido no encontrado"))
		return
	}
	if order.Status != enums.OrderStatusInProgress {
		writeJSON(w, http.StatusUnprocessableEntity, errBody("el pedido no está en proceso"))
		return
	}
	order.Status = enums.OrderStatusCompleted
	s.orders[id] = order
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) listOrderLines(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	s.mu.Lock()
	ok := false
	if _, exists := s.orders[orderID]; exists {
		ok = true
	}
	out := []orders.Line{}
	for _, line := range s.lines {
		if line.OrderID == orderID {
			out = append(out, line)
		}
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errBody("pedido no encontrado"))
		return
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createLine(w http.ResponseWriter, r *http.Request) {
	var line orders.Line
	if !decode(w, r, &line) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[line.OrderID]; !ok {
		writeJSON(w, http.StatusBadRequest, errBody("idPedido desconocido"))
		return
	}
	line.ID = s.nextID("lin")
	s.lines[line.ID] = line
	writeJSON(w, http.StatusCreated, line)
}

func (s *Server) putLine(w http.ResponseWriter, r *http.Request) {
	var line orders.Line
	if !decode(w, r, &line) {
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[id]; !ok {
		writeJSON(w, http.StatusNotFound, errBody("línea no encontrada"))
		return
	}
	line.ID = id
	s.lines[id] = line
	writeJSON(w, http.StatusOK, line)
}

func (s *Server) deleteLine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[id]; !ok {
		writeJSON(w, http.StatusNotFound, errBody("línea no encontrada"))
		return
	}
	delete(s.lines, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[chi.URLParam(r, "id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, errBody("evento no encontrado"))
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) createTicket(w http.ResponseWriter, r *http.Request) {
	var ticket tickets.Ticket
	if !decode(w, r, &ticket) {
		return
	}
	if ticket.UserID == "" || ticket.EventID == "" {
		writeJSON(w, http.StatusBadRequest, errBody("idUsuario e idEvento requeridos"))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket.ID = s.nextID("ent")
	s.tickets[ticket.ID] = ticket
	writeJSON(w, http.StatusCreated, ticket)
}

func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	var reservation tickets.Reservation
	if !decode(w, r, &reservation) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[reservation.TicketID]; !ok {
		writeJSON(w, http.StatusBadRequest, errBody("idEntrada desconocido"))
		return
	}
	reservation.ID = s.nextID("res")
	s.reservations[reservation.ID] = reservation
	writeJSON(w, http.StatusCreated, reservation)
}

func (s *Server) createBottleDetail(w http.ResponseWriter, r *http.Request) {
	var detail tickets.BottleDetail
	if !decode(w, r, &detail) {
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[id]; !ok {
		writeJSON(w, http.StatusBadRequest, errBody("idReserva desconocido"))
		return
	}
	detail.ReservationID = id
	detail.ID = s.nextID("det")
	s.bottles[id] = append(s.bottles[id], detail)
	writeJSON(w, http.StatusCreated, detail)
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		writeJSON(w, http.StatusBadRequest, errBody("se esperaba JSON"))
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("cuerpo inválido"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errBody(message string) map[string]string {
	return map[string]string{"mensaje": message}
}
