package preview

// Store is the persistence abstraction for catalog state.
// Implementations can be in-memory, file-backed, or remote (an asset server).
// The Repository uses Store for all reads and writes; callers of Repository
// do not need to know which Store is used.
type Store interface {
	GetAsset(id AssetID) (AssetInfo, bool)
	SetAsset(info AssetInfo)
	ListAssetIDs() []AssetID

	GetPacked(id PackedID) (*VirtualPackedTexture, bool)
	SetPacked(v *VirtualPackedTexture)
	DeletePacked(id PackedID)
	ListPackedIDs() []PackedID
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	assets map[AssetID]AssetInfo
	packed map[PackedID]*VirtualPackedTexture
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		assets: make(map[AssetID]AssetInfo),
		packed: make(map[PackedID]*VirtualPackedTexture),
	}
}

// GetAsset implements Store.GetAsset.
func (s *InMemoryStore) GetAsset(id AssetID) (AssetInfo, bool) {
	info, ok := s.assets[id]
	return info, ok
}

// SetAsset implements Store.SetAsset.
func (s *InMemoryStore) SetAsset(info AssetInfo) {
	s.assets[info.ID] = info
}

// ListAssetIDs implements Store.ListAssetIDs.
func (s *InMemoryStore) ListAssetIDs() []AssetID {
	ids := make([]AssetID, 0, len(s.assets))
	for id := range s.assets {
		ids = append(ids, id)
	}
	return ids
}

// GetPacked implements Store.GetPacked.
func (s *InMemoryStore) GetPacked(id PackedID) (*VirtualPackedTexture, bool) {
	v, ok := s.packed[id]
	return v, ok
}

// SetPacked implements Store.SetPacked.
func (s *InMemoryStore) SetPacked(v *VirtualPackedTexture) {
	s.packed[v.ID] = v
}

// DeletePacked implements Store.DeletePacked.
func (s *InMemoryStore) DeletePacked(id PackedID) {
	delete(s.packed, id)
}

// ListPackedIDs implements Store.ListPackedIDs.
func (s *InMemoryStore) ListPackedIDs() []PackedID {
	ids := make([]PackedID, 0, len(s.packed))
	for id := range s.packed {
		ids = append(ids, id)
	}
	return ids
}
