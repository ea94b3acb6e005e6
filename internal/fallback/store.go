// Package fallback is the file-backed order store used when the primary
// store is unreachable: orders captured here are served back merged into
// listings (flagged as degraded) until they can be replayed.
package fallback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
	bolt "go.etcd.io/bbolt"
)

var ordersBucket = []byte("orders")

type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("fallback: failed to open store at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ordersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("fallback: failed to create bucket: %w", err)
	}

	log.Info().Str("path", path).Msg("Fallback order store opened")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(_ context.Context, o *order.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("fallback: failed to marshal order %s: %w", o.ID, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ordersBucket).Put(o.ID.Bytes(), payload)
	})
	if err != nil {
		return fmt.Errorf("fallback: failed to save order %s: %w", o.ID, err)
	}
	return nil
}

func (s *Store) List(_ context.Context) ([]order.Order, error) {
	var orders []order.Order

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(ordersBucket).ForEach(func(_, v []byte) error {
			var o order.Order
			if err := json.Unmarshal(v, &o); err != nil {
				return fmt.Errorf("fallback: failed to unmarshal order: %w", err)
			}
			o.Degraded = true
			orders = append(orders, o)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Delete drops a captured order, typically after it has been replayed into
// the primary store.
func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ordersBucket).Delete(id.Bytes())
	})
	if err != nil {
		return fmt.Errorf("fallback: failed to delete order %s: %w", id, err)
	}
	return nil
}
