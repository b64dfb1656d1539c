package cart

import (
	"context"
	"sort"
	"strings"
	"sync"

	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
)

// LineItem is one product in the cart. A cart never holds two lines for the
// same product and never holds a line with quantity below one.
type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Snapshot is the state delivered to subscribers after each mutation.
type Snapshot struct {
	Items     []LineItem `json:"items"`
	ItemCount int        `json:"itemCount"`
}

// PriceResolver is the slice of the catalog the cart needs for subtotals.
type PriceResolver interface {
	PriceCents(productID string) (int64, bool)
}

// Store is a single browser's cart. All mutations are local: they update the
// in-memory lines, recompute the item count, write through to the mirror and
// notify subscribers.
type Store struct {
	mu sync.Mutex
	// saveMu orders mirror writes. It is taken before mu is released so
	// saves land in mutation order.
	saveMu      sync.Mutex
	key         string
	mirror      Mirror
	items       map[string]int
	itemCount   int
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// New returns an empty cart with no durable mirror.
func New() *Store {
	return &Store{
		items:       map[string]int{},
		subscribers: map[int]func(Snapshot){},
	}
}

// Open loads the cart stored under key in the mirror. A missing or unreadable
// entry yields an empty cart.
func Open(ctx context.Context, mirror Mirror, key string) (*Store, error) {
	if mirror == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart mirror required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart key required")
	}

	s := New()
	s.key = key
	s.mirror = mirror

	lines, err := mirror.Load(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity < 1 {
			continue
		}
		s.items[line.ProductID] += line.Quantity
	}
	s.recount()
	return s, nil
}

// AddItem adds quantity to the product's line, creating it if absent.
// A quantity below one is rejected and leaves the cart untouched.
func (s *Store) AddItem(ctx context.Context, productID string, quantity int) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"productId": productID, "quantity": quantity})
	}

	s.mu.Lock()
	s.items[productID] += quantity
	return s.commitLocked(ctx)
}

// UpdateQuantity sets the product's quantity. Zero or less removes the line.
// Updating a product that is not in the cart adds it.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	s.mu.Lock()
	if quantity <= 0 {
		delete(s.items, productID)
	} else {
		s.items[productID] = quantity
	}
	return s.commitLocked(ctx)
}

// RemoveItem drops the product's line. Removing an absent product is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	delete(s.items, strings.TrimSpace(productID))
	return s.commitLocked(ctx)
}

// Clear empties the cart and its mirror entry.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.items = map[string]int{}
	s.recount()
	snap := s.snapshotLocked()
	subs := s.subscriberListLocked()
	mirror, key := s.mirror, s.key
	s.saveMu.Lock()
	s.mu.Unlock()
	defer s.saveMu.Unlock()

	var err error
	if mirror != nil {
		if delErr := mirror.Delete(ctx, key); delErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, delErr, "clear cart mirror")
		}
	}
	notify(subs, snap)
	return err
}

// ItemCount is the sum of all line quantities.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemCount
}

// Items returns the lines ordered by product id.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked()
}

// Snapshot returns the current lines and count.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subtotal sums price times quantity for lines the resolver knows.
// Unknown products contribute nothing, matching what checkout would charge.
func (s *Store) Subtotal(prices PriceResolver) int64 {
	var total int64
	for _, line := range s.Items() {
		price, ok := prices.PriceCents(line.ProductID)
		if !ok {
			continue
		}
		total += price * int64(line.Quantity)
	}
	return total
}

// Subscribe registers fn to receive a snapshot after every mutation.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// commitLocked expects s.mu held and releases it.
func (s *Store) commitLocked(ctx context.Context) error {
	s.recount()
	snap := s.snapshotLocked()
	subs := s.subscriberListLocked()
	mirror, key := s.mirror, s.key
	s.saveMu.Lock()
	s.mu.Unlock()
	defer s.saveMu.Unlock()

	var err error
	if mirror != nil {
		if saveErr := mirror.Save(ctx, key, snap.Items); saveErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "persist cart mirror")
		}
	}
	notify(subs, snap)
	return err
}

func (s *Store) recount() {
	total := 0
	for _, qty := range s.items {
		total += qty
	}
	s.itemCount = total
}

func (s *Store) linesLocked() []LineItem {
	out := make([]LineItem, 0, len(s.items))
	for id, qty := range s.items {
		out = append(out, LineItem{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Items: s.linesLocked(), ItemCount: s.itemCount}
}

func (s *Store) subscriberListLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
