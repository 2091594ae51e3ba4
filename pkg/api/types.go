package api

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Types
// ==============================

// OrderInfo represents a settlement order (pending or finished).
type OrderInfo struct {
	ID         uint64 `json:"id"`
	Owner      string `json:"owner"`
	Kind       string `json:"kind"`       // "redeem" or "settle"
	Instrument string `json:"instrument"` // otoken address, zero for settle orders
	Amount     string `json:"amount"`     // decimal string, otoken units
	VaultID    uint64 `json:"vaultId"`
	ToToken    string `json:"toToken"` // zero address = settlement currency
	FeeBps     uint64 `json:"feeBps"`
	Finished   bool   `json:"finished"`
}

// CreateOrderRequest submits a new settlement order.
type CreateOrderRequest struct {
	Owner      string `json:"owner"`
	Instrument string `json:"instrument,omitempty"` // empty for settle orders
	Amount     string `json:"amount,omitempty"`     // decimal string
	VaultID    uint64 `json:"vaultId,omitempty"`
	ToToken    string `json:"toToken,omitempty"`
}

// CreateOrderResponse carries the assigned order id.
type CreateOrderResponse struct {
	OrderID uint64 `json:"orderId"`
}

// CancelOrderRequest cancels a pending order. Owner must match.
type CancelOrderRequest struct {
	Owner string `json:"owner"`
}

// SwapParamsInfo mirrors the resolver's per-order swap instruction.
type SwapParamsInfo struct {
	AmountOutMin string   `json:"amountOutMin"`
	Path         []string `json:"path"`
}

// BatchInfo is the resolver's executable payload.
type BatchInfo struct {
	CanExec  bool             `json:"canExec"`
	OrderIDs []uint64         `json:"orderIds"`
	Swaps    []SwapParamsInfo `json:"swapParams"`
}

// CanProcessResponse reports per-order eligibility.
type CanProcessResponse struct {
	OrderID    uint64 `json:"orderId"`
	CanProcess bool   `json:"canProcess"`
}

// ParamsInfo is the runtime parameter snapshot.
type ParamsInfo struct {
	RedeemFeeBps     uint64     `json:"redeemFeeBps"`
	SettleFeeBps     uint64     `json:"settleFeeBps"`
	MaxSlippageBps   uint64     `json:"maxSlippageBps"`
	AutomatorEnabled bool       `json:"automatorEnabled"`
	AllowedPairs     [][]string `json:"allowedPairs"`
}

// TreasuryResponse reports the accumulated fee balance for one token.
type TreasuryResponse struct {
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Types
// ==============================

// OrderEvent is broadcast to all connected clients on order lifecycle
// transitions.
type OrderEvent struct {
	Type      string    `json:"type"` // "order_created" or "order_finished"
	Cancelled bool      `json:"cancelled,omitempty"`
	Order     OrderInfo `json:"order"`
	Timestamp int64     `json:"timestamp"` // Unix milliseconds
}
