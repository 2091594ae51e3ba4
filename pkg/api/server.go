package api

import (
	"encoding/json"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/shenwilly/opyn-auto/pkg/settle"
)

// Server exposes the engine over REST and WebSocket: order submission and
// cancellation, the resolver's pull-style view for external keepers, and a
// broadcast stream of order lifecycle events.
//
// Caller identity is taken from the request body; this is the devnet
// surface, request signing belongs to a gateway in front of it.
type Server struct {
	store     *settle.OrderStore
	resolver  *settle.Resolver
	processor *settle.Processor
	params    *settle.Params
	router    *mux.Router
	hub       *Hub
}

func NewServer(store *settle.OrderStore, resolver *settle.Resolver, processor *settle.Processor, params *settle.Params) *Server {
	s := &Server{
		store:     store,
		resolver:  resolver,
		processor: processor,
		params:    params,
		router:    mux.NewRouter(),
		hub:       NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order endpoints
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")

	// Resolver endpoints (the keeper pull interface)
	api.HandleFunc("/resolver/processable", s.handleProcessable).Methods("GET")
	api.HandleFunc("/resolver/orders/{id}", s.handleCanProcess).Methods("GET")

	// Config / treasury reads
	api.HandleFunc("/params", s.handleGetParams).Methods("GET")
	api.HandleFunc("/treasury/{token}", s.handleGetTreasury).Methods("GET")

	// WebSocket event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.store.All()
	response := make([]OrderInfo, len(orders))
	for i := range orders {
		response[i] = orderInfo(&orders[i])
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	order, err := s.store.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "order not found", err.Error())
		return
	}
	respondJSON(w, orderInfo(&order))
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Owner) {
		respondError(w, http.StatusBadRequest, "invalid owner address", "")
		return
	}

	var instrument, toToken common.Address
	if req.Instrument != "" {
		if !common.IsHexAddress(req.Instrument) {
			respondError(w, http.StatusBadRequest, "invalid instrument address", "")
			return
		}
		instrument = common.HexToAddress(req.Instrument)
	}
	if req.ToToken != "" {
		if !common.IsHexAddress(req.ToToken) {
			respondError(w, http.StatusBadRequest, "invalid toToken address", "")
			return
		}
		toToken = common.HexToAddress(req.ToToken)
	}

	amount := big.NewInt(0)
	if req.Amount != "" {
		parsed, ok := new(big.Int).SetString(req.Amount, 10)
		if !ok || parsed.Sign() < 0 {
			respondError(w, http.StatusBadRequest, "invalid amount", req.Amount)
			return
		}
		amount = parsed
	}

	id, err := s.store.CreateOrder(common.HexToAddress(req.Owner), instrument, amount, req.VaultID, toToken)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "order rejected", err.Error())
		return
	}
	respondJSON(w, CreateOrderResponse{OrderID: id})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Owner) {
		respondError(w, http.StatusBadRequest, "invalid owner address", "")
		return
	}

	if err := s.store.CancelOrder(common.HexToAddress(req.Owner), id); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "cancel rejected", err.Error())
		return
	}
	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleProcessable(w http.ResponseWriter, r *http.Request) {
	batch := s.resolver.ProcessableOrders()

	response := BatchInfo{
		CanExec:  batch.CanExec,
		OrderIDs: batch.OrderIDs,
		Swaps:    make([]SwapParamsInfo, len(batch.Swaps)),
	}
	for i, sp := range batch.Swaps {
		info := SwapParamsInfo{AmountOutMin: sp.AmountOutMin.String()}
		for _, hop := range sp.Path {
			info.Path = append(info.Path, hop.Hex())
		}
		response.Swaps[i] = info
	}
	respondJSON(w, response)
}

func (s *Server) handleCanProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	respondJSON(w, CanProcessResponse{
		OrderID:    id,
		CanProcess: s.resolver.CanProcessOrder(id),
	})
}

func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	state := s.params.State()
	response := ParamsInfo{
		RedeemFeeBps:     state.RedeemFeeBps,
		SettleFeeBps:     state.SettleFeeBps,
		MaxSlippageBps:   state.MaxSlippageBps,
		AutomatorEnabled: state.AutomatorEnabled,
	}
	for _, pair := range state.AllowedPairs {
		response.AllowedPairs = append(response.AllowedPairs, []string{pair.TokenA.Hex(), pair.TokenB.Hex()})
	}
	respondJSON(w, response)
}

func (s *Server) handleGetTreasury(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if !common.IsHexAddress(token) {
		respondError(w, http.StatusBadRequest, "invalid token address", "")
		return
	}
	addr := common.HexToAddress(token)
	respondJSON(w, TreasuryResponse{
		Token:   addr.Hex(),
		Balance: s.processor.TreasuryBalance(addr).String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Order event broadcasting
// ==============================

// OrderCreated implements settle.Notifier.
func (s *Server) OrderCreated(order *settle.Order) {
	s.hub.Broadcast(OrderEvent{
		Type:      "order_created",
		Order:     orderInfo(order),
		Timestamp: time.Now().UnixMilli(),
	})
}

// OrderFinished implements settle.Notifier.
func (s *Server) OrderFinished(order *settle.Order, cancelled bool) {
	s.hub.Broadcast(OrderEvent{
		Type:      "order_finished",
		Cancelled: cancelled,
		Order:     orderInfo(order),
		Timestamp: time.Now().UnixMilli(),
	})
}

var _ settle.Notifier = (*Server)(nil)

// ==============================
// Helper Functions
// ==============================

func orderInfo(order *settle.Order) OrderInfo {
	return OrderInfo{
		ID:         order.ID,
		Owner:      order.Owner.Hex(),
		Kind:       order.Kind.String(),
		Instrument: order.Instrument.Hex(),
		Amount:     order.Amount.String(),
		VaultID:    order.VaultID,
		ToToken:    order.ToToken.Hex(),
		FeeBps:     order.FeeBps,
		Finished:   order.Finished,
	}
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errMsg,
		Message: message,
	})
}
