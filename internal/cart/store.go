package cart

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/create-my-art/api/internal/domain"
	"github.com/create-my-art/api/internal/platform/localstore"
)

const deviceKey = "cart"

// Listener receives a snapshot of the cart after every mutation.
type Listener func(items []domain.CartItem)

// StoreDeps carries the collaborators for the cart store.
type StoreDeps struct {
	// Device persists the cart between processes. Optional; a nil device
	// keeps the cart purely in memory.
	Device *localstore.Store
	// Clock feeds ULID timestamps. Defaults to time.Now.
	Clock func() time.Time
	// Entropy feeds ULID randomness. Defaults to a monotonic source.
	Entropy io.Reader
}

// Store is the single in-process owner of the cart. All mutations go through
// it; listeners replace the storefront's cartUpdated DOM event.
type Store struct {
	mu        sync.Mutex
	items     []domain.CartItem
	device    *localstore.Store
	clock     func() time.Time
	entropy   io.Reader
	listeners []Listener
}

// NewStore builds the cart store, loading any persisted cart from the
// device store. A corrupt persisted cart starts empty.
func NewStore(deps StoreDeps) (*Store, error) {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	entropy := deps.Entropy
	if entropy == nil {
		entropy = ulid.DefaultEntropy()
	}

	s := &Store{
		device:  deps.Device,
		clock:   clock,
		entropy: entropy,
	}

	if deps.Device != nil {
		var items []domain.CartItem
		if ok, err := deps.Device.Get(deviceKey, &items); err == nil && ok {
			s.items = items
		}
	}
	return s, nil
}

// Subscribe registers a listener invoked after every cart mutation. The
// listener runs outside the store lock and receives its own copy.
func (s *Store) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Add appends an item. A missing line ID is assigned a ULID, and the line
// price is reset from the size table so client-supplied prices never leak
// into totals.
func (s *Store) Add(item domain.CartItem) (domain.CartItem, error) {
	s.mu.Lock()
	if item.ID == "" {
		id, err := ulid.New(ulid.Timestamp(s.clock().UTC()), s.entropy)
		if err != nil {
			s.mu.Unlock()
			return domain.CartItem{}, errors.New("cart: generate line id")
		}
		item.ID = id.String()
	}
	item.PriceCents = item.Size.PriceCents()
	s.items = append(s.items, item)
	snapshot, err := s.persistLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return item, err
}

// Remove drops the line with the given ID. Removing an absent ID is a no-op
// that still persists and notifies, matching the storefront behaviour.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	kept := s.items[:0]
	for _, it := range s.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	s.items = kept
	snapshot, err := s.persistLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return err
}

// Clear empties the cart.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.items = nil
	snapshot, err := s.persistLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return err
}

// Items returns a defensive copy of the cart lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// TotalCents sums the line prices. Lines without a positive price fall back
// to the size table.
func (s *Store) TotalCents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, it := range s.items {
		price := it.PriceCents
		if price <= 0 {
			price = it.Size.PriceCents()
		}
		total += price
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// Count returns the number of lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) copyLocked() []domain.CartItem {
	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) persistLocked() ([]domain.CartItem, error) {
	snapshot := s.copyLocked()
	if s.device == nil {
		return snapshot, nil
	}
	if err := s.device.Put(deviceKey, snapshot); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

func (s *Store) notify(snapshot []domain.CartItem) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
