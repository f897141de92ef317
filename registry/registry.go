// Package registry maps a recipient's stable identity to wherever its state
// currently lives on the ledger.
//
// Identity and implementation are deliberately separate: the identity is a
// token minted exactly once, the implementation is whichever script currently
// holds that token. Authentication always tests token possession, never a
// code hash, so redeploying a recipient's logic never changes its
// externally-visible address.
package registry

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/eigerco/hyperlane-utxo/ledger"
)

var (
	ErrNotRegistered    = errors.New("identity not registered")
	ErrUnknownKind      = errors.New("unknown recipient kind")
	ErrNoHandler        = errors.New("no handler for recipient kind")
	ErrIdentityNotFound = errors.New("identity token not found on ledger")
	ErrZeroIdentity     = errors.New("identity must be non-zero")
)

// StableID is the 32-byte protocol identity of a recipient. It doubles as
// the Recipient field of inbound messages.
type StableID [32]byte

// Kind is the closed set of recipient behaviors. Dispatch on it happens once,
// at the lookup boundary.
type Kind uint8

const (
	KindGeneric Kind = iota + 1
	KindTokenReceiver
	KindContractCaller
)

func (k Kind) valid() bool {
	return k >= KindGeneric && k <= KindContractCaller
}

// Registration is one registry entry. Location is a hint re-resolved on every
// lookup; CustomISM, when set, overrides the mailbox default at delivery.
type Registration struct {
	Identity  StableID
	Location  ledger.Outpoint
	CustomISM *ledger.Outpoint
	Kind      Kind
}

// Handler consumes a delivered message body against the recipient's current
// state datum and returns the successor datum.
type Handler interface {
	Handle(origin uint32, sender [32]byte, body []byte, state []byte) ([]byte, error)
}

const resolveCacheSize = 1024

// Registry is keyed by identity; lookups never scan.
type Registry struct {
	mu             sync.RWMutex
	identityPolicy ledger.PolicyID
	entries        map[StableID]Registration
	handlers       map[Kind]Handler
	cache          *lru.Cache
	log            zerolog.Logger
}

func New(identityPolicy ledger.PolicyID, log zerolog.Logger) *Registry {
	cache, err := lru.New(resolveCacheSize)
	if err != nil {
		panic(err) // only fails for non-positive size
	}
	return &Registry{
		identityPolicy: identityPolicy,
		entries:        make(map[StableID]Registration),
		handlers:       make(map[Kind]Handler),
		cache:          cache,
		log:            log,
	}
}

// IdentityAsset is the token class marking possession of id.
func (r *Registry) IdentityAsset(id StableID) ledger.AssetID {
	return ledger.AssetID{Policy: r.identityPolicy, Name: string(id[:])}
}

// Register inserts or updates an entry. Updating an existing identity is the
// upgrade path: the location moves, the identity does not.
func (r *Registry) Register(reg Registration) error {
	if reg.Identity == (StableID{}) {
		return ErrZeroIdentity
	}
	if !reg.Kind.valid() {
		return ErrUnknownKind
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[reg.Identity]; ok && prev.Location != reg.Location {
		r.log.Info().
			Hex("identity", reg.Identity[:8]).
			Msg("recipient re-registered at new location")
		r.cache.Remove(reg.Identity)
	}
	r.entries[reg.Identity] = reg
	return nil
}

// Unregister removes an entry. The identity token stays minted; the identity
// can come back later but can never be reissued to someone else.
func (r *Registry) Unregister(id StableID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrNotRegistered
	}
	delete(r.entries, id)
	r.cache.Remove(id)
	return nil
}

// Lookup returns the entry for id. O(1) in the registry size.
func (r *Registry) Lookup(id StableID) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[id]
	return reg, ok
}

// List returns all entries, for the query surface.
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.entries))
	for _, reg := range r.entries {
		out = append(out, reg)
	}
	return out
}

// Resolve finds the live output currently holding id's identity token and
// refreshes the registered location. The cached outpoint is tried first;
// possession of the token is what authenticates the output either way.
func (r *Registry) Resolve(snap *ledger.Snapshot, id StableID) (ledger.Outpoint, ledger.Utxo, error) {
	r.mu.RLock()
	_, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return ledger.Outpoint{}, ledger.Utxo{}, ErrNotRegistered
	}

	asset := r.IdentityAsset(id)
	if cached, hit := r.cache.Get(id); hit {
		op := cached.(ledger.Outpoint)
		if u, live := snap.Resolve(op); live && u.HasAsset(asset) {
			return op, u, nil
		}
		r.cache.Remove(id)
	}

	op, u, found := snap.UtxoByAsset(asset)
	if !found {
		return ledger.Outpoint{}, ledger.Utxo{}, ErrIdentityNotFound
	}
	r.cache.Add(id, op)
	r.mu.Lock()
	// Re-checked: a concurrent Unregister since the read lock must not be
	// undone by the location refresh.
	if reg, still := r.entries[id]; still {
		reg.Location = op
		r.entries[id] = reg
	}
	r.mu.Unlock()
	return op, u, nil
}

// RegisterHandler binds the handler for one recipient kind.
func (r *Registry) RegisterHandler(kind Kind, h Handler) error {
	if !kind.valid() {
		return ErrUnknownKind
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
	return nil
}

// Handle dispatches a delivered body to the handler for reg's kind.
func (r *Registry) Handle(reg Registration, origin uint32, sender [32]byte, body []byte, state []byte) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.handlers[reg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNoHandler
	}
	return h.Handle(origin, sender, body, state)
}
