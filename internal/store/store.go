// Package store holds the in-memory entity collections for each brand and
// implements the optimistic-update and merge semantics the dispatcher and
// view engine build on. The store is the single owner of in-memory entity
// state; remote systems own durable state.
package store

import (
	"errors"
	"sync"

	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownToken is returned for a token the store did not issue or
	// has already resolved.
	ErrUnknownToken = errors.New("store: unknown optimistic token")

	// ErrTokenNotActive is returned when confirming or rolling back a
	// token whose patch is still queued behind an earlier one.
	ErrTokenNotActive = errors.New("store: optimistic token not active yet")
)

// Patch transforms the current entity value into the optimistic one. The
// input is nil when the entity does not exist yet; returning nil marks the
// entity as deleted.
type Patch func(current models.Entity) models.Entity

// Token identifies one outstanding optimistic update.
type Token struct {
	seq      uint64
	brandID  string
	kind     models.Kind
	entityID string
}

// EntityID returns the id of the entity the token covers.
func (t *Token) EntityID() string { return t.entityID }

type queuedPatch struct {
	token *Token
	patch Patch
}

// pendingUpdate tracks the active optimistic patch for one entity id, plus
// any patches queued behind it. At most one patch per id is ever applied
// but unresolved. stale is set when a remote merge touched the entity while
// the patch was outstanding; commit then re-applies the patch so a snapshot
// carrying the pre-action value cannot undo a successful action.
type pendingUpdate struct {
	token       *Token
	prior       models.Entity
	priorExists bool
	patch       Patch
	stale       bool
	queue       []queuedPatch
}

type collection struct {
	entities  map[string]models.Entity
	order     []string // insertion order; deleted ids keep their slot until confirmed
	revisions map[string]uint64
	fetchSeq  uint64 // last issued fetch revision
	mergedRev uint64 // highest fetch revision merged so far
	pending   map[string]*pendingUpdate
}

func newCollection() *collection {
	return &collection{
		entities:  make(map[string]models.Entity),
		revisions: make(map[string]uint64),
		pending:   make(map[string]*pendingUpdate),
	}
}

// Store is the in-memory entity store, keyed by brand and entity kind.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[models.Kind]*collection
	tokenSeq    uint64
}

// New creates an empty entity store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[models.Kind]*collection),
	}
}

func (s *Store) collection(brandID string, kind models.Kind) *collection {
	kinds, ok := s.collections[brandID]
	if !ok {
		kinds = make(map[models.Kind]*collection)
		s.collections[brandID] = kinds
	}
	col, ok := kinds[kind]
	if !ok {
		col = newCollection()
		kinds[kind] = col
	}
	return col
}

// BeginFetch allocates a fetch revision for a bulk remote read. The revision
// must be passed to UpsertFromRemote so a slower-but-older response can never
// clobber a faster-but-newer one.
func (s *Store) BeginFetch(brandID string, kind models.Kind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(brandID, kind)
	col.fetchSeq++
	return col.fetchSeq
}

// UpsertFromRemote replaces the remote-derived snapshot for a collection.
// The snapshot is applied only when its fetch revision is at least the
// highest revision already merged; stale responses are discarded and the
// method reports false.
func (s *Store) UpsertFromRemote(brandID string, kind models.Kind, fetchRev uint64, entities []models.Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(brandID, kind)
	if fetchRev < col.mergedRev {
		logrus.Debugf("Discarding stale %s snapshot for brand %s (rev %d < %d)", kind, brandID, fetchRev, col.mergedRev)
		return false
	}
	col.mergedRev = fetchRev

	col.entities = make(map[string]models.Entity, len(entities))
	col.order = col.order[:0]
	for _, e := range entities {
		e = normalize(e)
		id := e.EntityID()
		col.entities[id] = e
		col.order = append(col.order, id)
		col.revisions[id]++
	}
	// The snapshot replaced every entity wholesale, including ones with an
	// outstanding optimistic patch. Flag those so commit re-applies them.
	for _, pu := range col.pending {
		pu.stale = true
	}
	return true
}

// Merge adds or updates entities without replacing the rest of the
// collection. Used by ingestion, which discovers entities incrementally.
func (s *Store) Merge(brandID string, kind models.Kind, entities []models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(brandID, kind)
	for _, e := range entities {
		e = normalize(e)
		id := e.EntityID()
		if _, known := col.entities[id]; !known {
			col.order = append(col.order, id)
		}
		col.entities[id] = e
		col.revisions[id]++
		if pu, busy := col.pending[id]; busy {
			pu.stale = true
		}
	}
}

// List returns the current view of a collection. Alerts are ordered
// worst-first (severity rank, then detection time descending); other kinds
// keep their insertion order.
func (s *Store) List(brandID string, kind models.Kind) []models.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(brandID, kind)
	out := make([]models.Entity, 0, len(col.order))
	for _, id := range col.order {
		if e, ok := col.entities[id]; ok {
			out = append(out, e)
		}
	}
	if kind == models.KindAlert {
		models.SortAlertEntities(out)
	}
	return out
}

// Get returns one entity by id.
func (s *Store) Get(brandID string, kind models.Kind, id string) (models.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.collection(brandID, kind).entities[id]
	return e, ok
}

// Revision returns the committed revision counter for an entity id.
func (s *Store) Revision(brandID string, kind models.Kind, id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collection(brandID, kind).revisions[id]
}

// ApplyOptimistic merges a local patch immediately and returns a token used
// to later confirm or roll it back. If another optimistic update on the same
// id is still unresolved, the new patch queues behind it and is applied only
// once the earlier one resolves.
func (s *Store) ApplyOptimistic(brandID string, kind models.Kind, id string, patch Patch) *Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(brandID, kind)
	s.tokenSeq++
	token := &Token{seq: s.tokenSeq, brandID: brandID, kind: kind, entityID: id}

	if pu, busy := col.pending[id]; busy {
		pu.queue = append(pu.queue, queuedPatch{token: token, patch: patch})
		return token
	}

	col.pending[id] = s.applyPatch(col, id, token, patch)
	return token
}

// applyPatch runs a patch against the current entity value and records the
// prior value for rollback. Caller holds the lock.
func (s *Store) applyPatch(col *collection, id string, token *Token, patch Patch) *pendingUpdate {
	prior, priorExists := col.entities[id]
	pu := &pendingUpdate{token: token, prior: prior, priorExists: priorExists, patch: patch}

	var current models.Entity
	if priorExists {
		current = prior
	}
	next := patch(current)
	if next == nil {
		// Optimistic delete: hide the entity but keep its order slot so a
		// rollback restores the original relative position.
		delete(col.entities, id)
		return pu
	}
	if !priorExists {
		col.order = append(col.order, id)
	}
	col.entities[id] = next
	return pu
}

// Confirm commits the optimistic patch permanently.
func (s *Store) Confirm(token *Token) error {
	return s.resolve(token, true, nil)
}

// ConfirmReconciled commits the optimistic patch but replaces the entity
// with the authoritative value carried by the remote response.
func (s *Store) ConfirmReconciled(token *Token, authoritative models.Entity) error {
	return s.resolve(token, true, authoritative)
}

// Rollback reverts the entity to its exact pre-patch value.
func (s *Store) Rollback(token *Token) error {
	return s.resolve(token, false, nil)
}

func (s *Store) resolve(token *Token, commit bool, authoritative models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(token.brandID, token.kind)
	pu, ok := col.pending[token.entityID]
	if !ok {
		return ErrUnknownToken
	}
	if pu.token != token {
		for _, q := range pu.queue {
			if q.token == token {
				return ErrTokenNotActive
			}
		}
		return ErrUnknownToken
	}

	id := token.entityID
	if commit {
		if authoritative != nil {
			authoritative = normalize(authoritative)
			newID := authoritative.EntityID()
			if newID != id {
				// The backend assigned its own id to an optimistically
				// created entity: re-key in place, keeping the order slot.
				// Queued tokens follow the entity to its new id, otherwise
				// they could never be confirmed or rolled back.
				delete(col.entities, id)
				for i, v := range col.order {
					if v == id {
						col.order[i] = newID
					}
				}
				col.revisions[newID] = col.revisions[id]
				delete(col.revisions, id)
				for _, q := range pu.queue {
					q.token.entityID = newID
				}
				id = newID
			}
			col.entities[id] = authoritative
		} else if pu.stale && pu.patch != nil {
			// A remote merge replaced the entity mid-flight. The commit
			// means the action succeeded, so the patch wins over the
			// snapshot's pre-action value: re-apply it to the merged state.
			var current models.Entity
			if e, exists := col.entities[id]; exists {
				current = e
			}
			if next := pu.patch(current); next == nil {
				delete(col.entities, id)
			} else {
				if !containsID(col.order, id) {
					col.order = append(col.order, id)
				}
				col.entities[id] = next
			}
		}
		if _, exists := col.entities[id]; !exists {
			// Confirmed delete: release the order slot.
			col.order = removeID(col.order, id)
			delete(col.revisions, id)
		} else {
			col.revisions[id]++
		}
	} else {
		if pu.priorExists {
			col.entities[id] = pu.prior
		} else {
			delete(col.entities, id)
			col.order = removeID(col.order, id)
		}
	}

	// Promote the next queued patch, if any, against the settled value. The
	// pending entry is keyed by the token's original id; promotion follows
	// the settled id in case a reconcile re-keyed the entity.
	delete(col.pending, token.entityID)
	if len(pu.queue) > 0 {
		next := pu.queue[0]
		rest := pu.queue[1:]
		promoted := s.applyPatch(col, id, next.token, next.patch)
		promoted.queue = rest
		col.pending[id] = promoted
	}
	return nil
}

func normalize(e models.Entity) models.Entity {
	if n, ok := e.(models.Normalizer); ok {
		return n.Normalize()
	}
	return e
}

func containsID(order []string, id string) bool {
	for _, v := range order {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
