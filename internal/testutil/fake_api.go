package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"ordertrack/internal/dto"
)

// FakeUser is an account known to the fake order service.
type FakeUser struct {
	Username string
	Password string
	Role     string
	Token    string
}

var fakeTransitions = map[string][]string{
	"created":    {"picked_up", "cancelled"},
	"picked_up":  {"in_transit", "cancelled"},
	"in_transit": {"delivered"},
	"delivered":  {},
	"cancelled":  {},
}

type ctxKey struct{}

// FakeAPI is an in-process stand-in for the remote order service: REST
// endpoints, role scoping, transition rules and the push stream.
type FakeAPI struct {
	Server *httptest.Server

	mu              sync.Mutex
	users           map[string]FakeUser
	tokens          map[string]FakeUser
	orders          map[string]dto.OrderDTO
	history         map[string][]dto.HistoryEntryDTO
	statuses        []string
	failures        map[string][]int
	calls           map[string]int
	conns           map[*websocket.Conn]FakeUser
	accepts         int
	streamAvailable bool
	rejectHandshake bool
	clock           time.Time
	upgrader        websocket.Upgrader
}

func NewFakeAPI(users ...FakeUser) *FakeAPI {
	f := &FakeAPI{
		users:           make(map[string]FakeUser),
		tokens:          make(map[string]FakeUser),
		orders:          make(map[string]dto.OrderDTO),
		history:         make(map[string][]dto.HistoryEntryDTO),
		statuses:        []string{"created", "picked_up", "in_transit", "delivered", "cancelled"},
		failures:        make(map[string][]int),
		calls:           make(map[string]int),
		conns:           make(map[*websocket.Conn]FakeUser),
		streamAvailable: true,
		clock:           time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		f.users[u.Username] = u
		f.tokens[u.Token] = u
	}

	r := chi.NewRouter()
	r.Use(f.countAndFail)
	r.Post("/login", f.handleLogin)
	r.Get("/ws/orders", f.handleStream)
	r.Group(func(r chi.Router) {
		r.Use(f.authenticate)
		r.Get("/orders", f.handleListOrders)
		r.Post("/orders", f.handleCreateOrder)
		r.Get("/orders/{orderId}", f.handleGetOrder)
		r.Get("/orders/{orderId}/history", f.handleHistory)
		r.Put("/orders/{orderId}/status", f.handleUpdateStatus)
		r.Get("/order-statuses", f.handleStatuses)
		r.Get("/merchants", f.handleMerchants)
	})

	f.Server = httptest.NewServer(r)
	return f
}

func (f *FakeAPI) Close() {
	f.DropStreamConnections()
	f.Server.Close()
}

func (f *FakeAPI) URL() string {
	return f.Server.URL
}

func (f *FakeAPI) StreamURL() string {
	return "ws" + strings.TrimPrefix(f.Server.URL, "http") + "/ws/orders"
}

// SeedOrder stores an order as if it had been created remotely, without a
// stream notification.
func (f *FakeAPI) SeedOrder(o dto.OrderDTO) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = dto.Time{Time: f.tick()}
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	if o.CurrentStatus == "" {
		o.CurrentStatus = "created"
	}
	f.orders[o.OrderID] = o
	f.history[o.OrderID] = append(f.history[o.OrderID], dto.HistoryEntryDTO{
		Status: o.CurrentStatus, UpdatedBy: "system", Timestamp: o.CreatedAt,
	})
}

// SetStatus changes the remote state of an order. When notify is false no
// stream frame is sent, which simulates a missed event.
func (f *FakeAPI) SetStatus(orderID, status, updatedBy string, notify bool) (dto.OrderDTO, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return dto.OrderDTO{}, false
	}
	o = f.applyStatus(o, status, updatedBy)
	if notify {
		f.broadcastLocked(o, updatedBy, "delivery")
	}
	return o, true
}

func (f *FakeAPI) Order(orderID string) (dto.OrderDTO, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	return o, ok
}

// FailNext makes the next n calls to method+path answer with status.
func (f *FakeAPI) FailNext(method, path string, status, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	for i := 0; i < n; i++ {
		f.failures[key] = append(f.failures[key], status)
	}
}

func (f *FakeAPI) Calls(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+path]
}

// SendRaw writes data as-is to every open stream connection.
func (f *FakeAPI) SendRaw(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.conns {
		_ = c.WriteMessage(websocket.TextMessage, data)
	}
}

// DropStreamConnections closes every stream connection without a close
// handshake.
func (f *FakeAPI) DropStreamConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.conns {
		_ = c.Close()
		delete(f.conns, c)
	}
}

// SetStreamAvailable toggles whether stream upgrades are accepted.
func (f *FakeAPI) SetStreamAvailable(available bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamAvailable = available
}

// RejectUnknownTokensAtHandshake answers unknown stream tokens with 401 instead
// of upgrading and closing with a policy violation.
func (f *FakeAPI) RejectUnknownTokensAtHandshake(reject bool) {
	f.mu.Lock()
	f.rejectHandshake = reject
	f.mu.Unlock()
}

func (f *FakeAPI) StreamConnections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *FakeAPI) StreamAccepts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepts
}

func (f *FakeAPI) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *FakeAPI) applyStatus(o dto.OrderDTO, status, updatedBy string) dto.OrderDTO {
	o.CurrentStatus = status
	o.UpdatedAt = dto.Time{Time: f.tick()}
	f.orders[o.OrderID] = o
	f.history[o.OrderID] = append(f.history[o.OrderID], dto.HistoryEntryDTO{
		Status: status, UpdatedBy: updatedBy, Timestamp: o.UpdatedAt,
	})
	return o
}

func (f *FakeAPI) broadcastLocked(o dto.OrderDTO, updatedBy, source string) {
	frame, _ := json.Marshal(map[string]any{
		"order_id":       o.OrderID,
		"current_status": o.CurrentStatus,
		"merchant_name":  o.MerchantName,
		"timestamp":      o.UpdatedAt,
		"metadata":       map[string]string{"updated_by": updatedBy, "source": source},
	})
	for c, u := range f.conns {
		if u.Role == "operations_team" || u.Username == o.MerchantName {
			_ = c.WriteMessage(websocket.TextMessage, frame)
		}
	}
}

func (f *FakeAPI) countAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		f.calls[key]++
		var status int
		if queue := f.failures[key]; len(queue) > 0 {
			status, f.failures[key] = queue[0], queue[1:]
		}
		f.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"detail": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		u, ok := f.tokens[token]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func userFrom(r *http.Request) FakeUser {
	u, _ := r.Context().Value(ctxKey{}).(FakeUser)
	return u
}

func (f *FakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	f.mu.Lock()
	u, ok := f.users[req.Username]
	f.mu.Unlock()
	if !ok || u.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, dto.LoginResponse{AccessToken: u.Token, Role: u.Role, Username: u.Username})
}

func (f *FakeAPI) handleListOrders(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	f.mu.Lock()
	var visible []dto.OrderDTO
	for _, o := range f.orders {
		if u.Role == "merchant" && o.MerchantName != u.Username {
			continue
		}
		// The list endpoint only returns a subset of the order fields.
		visible = append(visible, dto.OrderDTO{
			OrderID:         o.OrderID,
			MerchantName:    o.MerchantName,
			CustomerContact: o.CustomerContact,
			CurrentStatus:   o.CurrentStatus,
			CreatedAt:       o.CreatedAt,
			UpdatedAt:       o.UpdatedAt,
		})
	}
	f.mu.Unlock()

	sort.Slice(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt.Time) {
			return visible[i].CreatedAt.After(visible[j].CreatedAt.Time)
		}
		return visible[i].OrderID < visible[j].OrderID
	})

	page := []dto.OrderDTO{}
	if skip < len(visible) {
		end := skip + limit
		if end > len(visible) {
			end = len(visible)
		}
		page = visible[skip:end]
	}
	writeJSON(w, http.StatusOK, dto.OrderListResponse{Count: len(page), Orders: page})
}

func (f *FakeAPI) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	f.mu.Lock()
	o, ok := f.orders[chi.URLParam(r, "orderId")]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Order not found"})
		return
	}
	if u.Role == "merchant" && o.MerchantName != u.Username {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Access denied"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (f *FakeAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	f.mu.Lock()
	_, ok := f.orders[id]
	entries := append([]dto.HistoryEntryDTO(nil), f.history[id]...)
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Order not found"})
		return
	}
	writeJSON(w, http.StatusOK, dto.HistoryResponse{OrderID: id, History: entries})
}

func (f *FakeAPI) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	if u.Role != "merchant" {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Only merchants can create orders"})
		return
	}
	var req dto.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "invalid body"}},
		})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.orders[req.OrderID]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Order ID already exist!"})
		return
	}
	now := dto.Time{Time: f.tick()}
	o := dto.OrderDTO{
		OrderID:         req.OrderID,
		ProductName:     req.ProductName,
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		CustomerAddress: req.CustomerAddress,
		MerchantName:    u.Username,
		CurrentStatus:   "created",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.orders[o.OrderID] = o
	f.history[o.OrderID] = []dto.HistoryEntryDTO{{Status: "created", UpdatedBy: "system", Timestamp: now}}
	f.broadcastLocked(o, u.Username, "merchant")

	writeJSON(w, http.StatusCreated, dto.CreateOrderResponse{
		OrderID: o.OrderID, Status: "created", Message: "Order created successfully!",
	})
}

func (f *FakeAPI) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	if u.Role != "operations_team" {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Not authorized"})
		return
	}
	var req dto.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "invalid body"}},
		})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := chi.URLParam(r, "orderId")
	o, ok := f.orders[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Order not found"})
		return
	}
	allowed := false
	for _, next := range fakeTransitions[o.CurrentStatus] {
		if next == req.NewStatus {
			allowed = true
		}
	}
	if !allowed {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"detail": fmt.Sprintf("Invalid status transition from %s to %s", o.CurrentStatus, req.NewStatus),
		})
		return
	}

	old := o.CurrentStatus
	o = f.applyStatus(o, req.NewStatus, u.Username)
	f.broadcastLocked(o, u.Username, "operations")

	writeJSON(w, http.StatusOK, dto.StatusUpdateResponse{
		OrderID: o.OrderID, OldStatus: old, NewStatus: o.CurrentStatus, UpdatedAt: o.UpdatedAt,
	})
}

func (f *FakeAPI) handleStatuses(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, dto.StatusesResponse{Statuses: f.statuses})
}

func (f *FakeAPI) handleMerchants(w http.ResponseWriter, r *http.Request) {
	if userFrom(r).Role != "operations_team" {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Not authorized"})
		return
	}
	f.mu.Lock()
	var merchants []string
	for _, u := range f.users {
		if u.Role == "merchant" {
			merchants = append(merchants, u.Username)
		}
	}
	f.mu.Unlock()
	sort.Strings(merchants)
	writeJSON(w, http.StatusOK, dto.MerchantsResponse{Merchants: merchants})
}

func (f *FakeAPI) handleStream(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	available := f.streamAvailable
	rejectHandshake := f.rejectHandshake
	u, known := f.tokens[r.URL.Query().Get("token")]
	f.mu.Unlock()

	if !available {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	if !known && rejectHandshake {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if !known {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	f.mu.Lock()
	f.conns[conn] = u
	f.accepts++
	f.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	f.mu.Lock()
	delete(f.conns, conn)
	f.mu.Unlock()
	_ = conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
