package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/shenwilly/opyn-auto/pkg/settle"
)

// Store provides Pebble-based persistence for the order log and runtime
// parameters. Records are JSON-marshalled; order writes are synced, since a
// lost finished mark would allow double settlement after restart.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveOrder persists an order record, overwriting any prior version.
func (s *Store) SaveOrder(order *settle.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(order.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order %d: %w", order.ID, err)
	}
	return nil
}

// LoadOrders loads every persisted order, in id order.
func (s *Store) LoadOrders() ([]*settle.Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open order iterator: %w", err)
	}
	defer iter.Close()

	var orders []*settle.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var order settle.Order
		if err := json.Unmarshal(iter.Value(), &order); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order at %s: %w", iter.Key(), err)
		}
		orders = append(orders, &order)
	}
	return orders, nil
}

// SaveParams persists the runtime parameter snapshot.
func (s *Store) SaveParams(state settle.ParamsState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := s.db.Set([]byte(keyParams), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save params: %w", err)
	}
	return nil
}

// LoadParams loads the persisted parameter snapshot. Returns ok=false if
// none has been written yet.
func (s *Store) LoadParams() (settle.ParamsState, bool, error) {
	data, closer, err := s.db.Get([]byte(keyParams))
	if err == pebble.ErrNotFound {
		return settle.ParamsState{}, false, nil
	}
	if err != nil {
		return settle.ParamsState{}, false, fmt.Errorf("failed to get params: %w", err)
	}
	defer closer.Close()

	var state settle.ParamsState
	if err := json.Unmarshal(data, &state); err != nil {
		return settle.ParamsState{}, false, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return state, true, nil
}

var _ settle.OrderDB = (*Store)(nil)
var _ settle.ParamsDB = (*Store)(nil)
