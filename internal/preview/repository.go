package preview

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Repository defines the concurrency-safe contract for accessing and mutating
// the asset catalog and the virtual packed-texture registry.
type Repository interface {
	// PutAsset records or replaces catalog metadata for one asset.
	PutAsset(info AssetInfo)

	// GetAsset returns the catalog entry for id. ok is false if unknown.
	GetAsset(id AssetID) (AssetInfo, bool)

	// ListAssets returns all catalog entries sorted by ID.
	ListAssets() []AssetInfo

	// AssetCount returns the number of cataloged assets. Used for metrics.
	AssetCount() int

	// CreatePacked registers a virtual packed texture for the classified
	// sources. Mode PackNone is refused with ErrNothingToPack. Re-creating an
	// identity that already exists returns the existing entity (idempotent).
	// The returned entity is a snapshot; later status transitions do not show
	// through it.
	CreatePacked(materialName string, src ORMSources) (*VirtualPackedTexture, error)

	// GetPacked returns a snapshot of the virtual packed texture with the
	// given id.
	GetPacked(id PackedID) (*VirtualPackedTexture, error)

	// ListPacked returns snapshots of all virtual packed textures sorted by ID.
	ListPacked() []*VirtualPackedTexture

	// MarkPacked transitions the entity to StatusPacked after the external
	// packing operation has written a concrete container file.
	MarkPacked(id PackedID) error

	// DeletePacked removes the virtual entity only; source textures are
	// untouched. Deleting an unknown id is a no-op for idempotency.
	DeletePacked(id PackedID)

	// PackedCount returns the number of registered packed textures.
	PackedCount() int
}

var (
	// ErrPackedNotFound is returned when a packed-texture id is unknown.
	ErrPackedNotFound = errors.New("packed texture not found")

	// ErrNothingToPack is returned when classification refused the sources.
	ErrNothingToPack = errors.New("sources do not classify to a packing mode")

	// ErrAlreadyPacked is returned when MarkPacked is called twice.
	ErrAlreadyPacked = errors.New("texture already packed")
)

// InMemoryRepository is a concurrency-safe in-memory implementation of
// Repository. It uses a Store for persistence; by default an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given
// Store. Useful for testing or for plugging in a different backend.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// PutAsset implements Repository.PutAsset.
func (r *InMemoryRepository) PutAsset(info AssetInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.SetAsset(info)
}

// GetAsset implements Repository.GetAsset.
func (r *InMemoryRepository) GetAsset(id AssetID) (AssetInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.GetAsset(id)
}

// ListAssets implements Repository.ListAssets.
func (r *InMemoryRepository) ListAssets() []AssetInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListAssetIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]AssetInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := r.store.GetAsset(id); ok {
			out = append(out, info)
		}
	}
	return out
}

// AssetCount implements Repository.AssetCount.
func (r *InMemoryRepository) AssetCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.ListAssetIDs())
}

// CreatePacked implements Repository.CreatePacked.
func (r *InMemoryRepository) CreatePacked(materialName string, src ORMSources) (*VirtualPackedTexture, error) {
	c := Classify(src)
	if c.Mode == PackNone {
		return nil, ErrNothingToPack
	}

	id := PackedIdentity(src, c.Mode)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.store.GetPacked(id); ok {
		return clonePacked(existing), nil
	}

	v := &VirtualPackedTexture{
		ID:          id,
		Name:        PackedName(materialName, c.Mode),
		Mode:        c.Mode,
		ModeLabel:   c.Mode.String(),
		Workflow:    c.Workflow,
		Sources:     src,
		MetalSource: c.MetalSource,
		Status:      StatusReadyToPack,
		CreatedAt:   time.Now().UTC(),
	}
	r.store.SetPacked(v)
	return clonePacked(v), nil
}

// GetPacked implements Repository.GetPacked.
func (r *InMemoryRepository) GetPacked(id PackedID) (*VirtualPackedTexture, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.store.GetPacked(id)
	if !ok {
		return nil, ErrPackedNotFound
	}
	return clonePacked(v), nil
}

// ListPacked implements Repository.ListPacked.
func (r *InMemoryRepository) ListPacked() []*VirtualPackedTexture {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListPackedIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*VirtualPackedTexture, 0, len(ids))
	for _, id := range ids {
		if v, ok := r.store.GetPacked(id); ok {
			out = append(out, clonePacked(v))
		}
	}
	return out
}

// MarkPacked implements Repository.MarkPacked.
func (r *InMemoryRepository) MarkPacked(id PackedID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.store.GetPacked(id)
	if !ok {
		return ErrPackedNotFound
	}
	if v.Status == StatusPacked {
		return ErrAlreadyPacked
	}
	v.Status = StatusPacked
	return nil
}

// DeletePacked implements Repository.DeletePacked.
func (r *InMemoryRepository) DeletePacked(id PackedID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.DeletePacked(id)
}

// PackedCount implements Repository.PackedCount.
func (r *InMemoryRepository) PackedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.ListPackedIDs())
}

// clonePacked copies v so callers never share the stored entity, which
// MarkPacked mutates under the repository lock. The TextureRef pointers inside
// Sources are immutable after creation, so a shallow copy suffices.
func clonePacked(v *VirtualPackedTexture) *VirtualPackedTexture {
	c := *v
	return &c
}
