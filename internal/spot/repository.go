package spot

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rit-atlas/atlas/internal/auth"
)

// Common errors for repository operations.
var (
	ErrSpotNotFound           = errors.New("spot not found")
	ErrTypeNotFound           = errors.New("type not found")
	ErrCategoryNotFound       = errors.New("category not found")
	ErrClassificationNotFound = errors.New("classification not found")

	// ErrMissingSystemClassification indicates a category was set up
	// without a required default classification reference. It is a
	// data-setup defect, not user error.
	ErrMissingSystemClassification = errors.New("missing system classification for category")

	// ErrInvalidSystemClassification is returned when a category's
	// default classification reference points at a classification that
	// does not exist or belongs to another category.
	ErrInvalidSystemClassification = errors.New("invalid system classification reference")
)

// SpotRepository defines persistence for spots. Create stores the spot
// and its descriptor values atomically; partial writes must not occur.
type SpotRepository interface {
	Create(ctx context.Context, s *Spot) error
	Update(ctx context.Context, s *Spot) error
	GetByID(ctx context.Context, id int64) (*Spot, error)
	List(ctx context.Context) ([]*Spot, error)
}

// TaxonomyRepository defines read access to categories, types,
// classifications, and descriptors, plus category administration.
type TaxonomyRepository interface {
	CategoryByID(ctx context.Context, id int64) (*Category, error)
	CategoryByName(ctx context.Context, name string) (*Category, error)
	// ListCategories returns categories ordered by ID. With
	// crowdsourceOnly set, categories closed to crowdsourcing are
	// omitted.
	ListCategories(ctx context.Context, crowdsourceOnly bool) ([]*Category, error)

	TypeByName(ctx context.Context, name string) (*Type, error)
	TypesByCategory(ctx context.Context, categoryID int64) ([]*Type, error)

	ClassificationByID(ctx context.Context, id int64) (*Classification, error)
	ClassificationsByCategory(ctx context.Context, categoryID int64) ([]*Classification, error)

	DescriptorsByIDs(ctx context.Context, ids []int64) (map[int64]Descriptor, error)
	DescriptorsByCategory(ctx context.Context, categoryID int64) ([]Descriptor, error)

	// SaveCategory stores a category after validating that its default
	// classification references, when set, point at classifications of
	// this category. Invalid references fail with
	// ErrInvalidSystemClassification.
	SaveCategory(ctx context.Context, c *Category) error
}

// PermissionStore resolves the stored permission set of a user, used
// when the acting principal is not the user under inspection (approval
// checks the spot's author, not the approver).
type PermissionStore interface {
	PermissionsForUser(ctx context.Context, userID string) (auth.PermissionSet, error)
}

// MemorySpotRepository is an in-memory SpotRepository guarded by an
// RWMutex. Used for testing and development.
type MemorySpotRepository struct {
	mu     sync.RWMutex
	nextID int64
	spots  map[int64]*Spot
}

// NewMemorySpotRepository creates an empty in-memory spot repository.
func NewMemorySpotRepository() *MemorySpotRepository {
	return &MemorySpotRepository{nextID: 1, spots: make(map[int64]*Spot)}
}

// Create stores the spot and assigns it the next ID.
func (r *MemorySpotRepository) Create(ctx context.Context, s *Spot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.nextID
	r.nextID++
	r.spots[s.ID] = copySpot(s)
	return nil
}

// Update replaces a stored spot.
func (r *MemorySpotRepository) Update(ctx context.Context, s *Spot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spots[s.ID]; !ok {
		return ErrSpotNotFound
	}
	r.spots[s.ID] = copySpot(s)
	return nil
}

// GetByID retrieves a spot by ID.
func (r *MemorySpotRepository) GetByID(ctx context.Context, id int64) (*Spot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spots[id]
	if !ok {
		return nil, ErrSpotNotFound
	}
	return copySpot(s), nil
}

// List returns all spots ordered by ID.
func (r *MemorySpotRepository) List(ctx context.Context) ([]*Spot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spots := make([]*Spot, 0, len(r.spots))
	for _, s := range r.spots {
		spots = append(spots, copySpot(s))
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].ID < spots[j].ID })
	return spots, nil
}

func copySpot(s *Spot) *Spot {
	c := *s
	if s.Descriptors != nil {
		c.Descriptors = make(map[int64]string, len(s.Descriptors))
		for id, v := range s.Descriptors {
			c.Descriptors[id] = v
		}
	}
	return &c
}

// MemoryTaxonomyRepository is an in-memory TaxonomyRepository guarded by
// an RWMutex. Used for testing and development.
type MemoryTaxonomyRepository struct {
	mu              sync.RWMutex
	categories      map[int64]*Category
	types           map[int64]*Type
	classifications map[int64]*Classification
	descriptors     map[int64]Descriptor
	// categoryDescriptors maps category ID to its required descriptor
	// IDs, in attachment order.
	categoryDescriptors map[int64][]int64
}

// NewMemoryTaxonomyRepository creates an empty in-memory taxonomy.
func NewMemoryTaxonomyRepository() *MemoryTaxonomyRepository {
	return &MemoryTaxonomyRepository{
		categories:          make(map[int64]*Category),
		types:               make(map[int64]*Type),
		classifications:     make(map[int64]*Classification),
		descriptors:         make(map[int64]Descriptor),
		categoryDescriptors: make(map[int64][]int64),
	}
}

// SaveCategory stores a category after validating its default
// classification references.
func (r *MemoryTaxonomyRepository) SaveCategory(ctx context.Context, c *Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range []*int64{c.UnderReviewClassificationID, c.PublicClassificationID} {
		if ref == nil {
			continue
		}
		cls, ok := r.classifications[*ref]
		if !ok || cls.CategoryID != c.ID {
			return ErrInvalidSystemClassification
		}
	}
	stored := *c
	r.categories[c.ID] = &stored
	return nil
}

// PutType stores a type.
func (r *MemoryTaxonomyRepository) PutType(t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *t
	r.types[t.ID] = &stored
}

// PutClassification stores a classification.
func (r *MemoryTaxonomyRepository) PutClassification(c *Classification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *c
	r.classifications[c.ID] = &stored
}

// PutDescriptor stores a descriptor and attaches it to the given
// categories as a required descriptor.
func (r *MemoryTaxonomyRepository) PutDescriptor(d Descriptor, categoryIDs ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.ID] = d
	for _, categoryID := range categoryIDs {
		r.categoryDescriptors[categoryID] = append(r.categoryDescriptors[categoryID], d.ID)
	}
}

// CategoryByID retrieves a category by ID.
func (r *MemoryTaxonomyRepository) CategoryByID(ctx context.Context, id int64) (*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	stored := *c
	return &stored, nil
}

// CategoryByName retrieves a category by exact name.
func (r *MemoryTaxonomyRepository) CategoryByName(ctx context.Context, name string) (*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.categories {
		if c.Name == name {
			stored := *c
			return &stored, nil
		}
	}
	return nil, ErrCategoryNotFound
}

// ListCategories returns categories ordered by ID.
func (r *MemoryTaxonomyRepository) ListCategories(ctx context.Context, crowdsourceOnly bool) ([]*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	categories := make([]*Category, 0, len(r.categories))
	for _, c := range r.categories {
		if crowdsourceOnly && !c.Crowdsource {
			continue
		}
		stored := *c
		categories = append(categories, &stored)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

// TypeByName retrieves a type by exact name.
func (r *MemoryTaxonomyRepository) TypeByName(ctx context.Context, name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.types {
		if t.Name == name {
			stored := *t
			return &stored, nil
		}
	}
	return nil, ErrTypeNotFound
}

// TypesByCategory returns a category's types ordered by ID.
func (r *MemoryTaxonomyRepository) TypesByCategory(ctx context.Context, categoryID int64) ([]*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]*Type, 0)
	for _, t := range r.types {
		if t.CategoryID == categoryID {
			stored := *t
			types = append(types, &stored)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })
	return types, nil
}

// ClassificationByID retrieves a classification by ID.
func (r *MemoryTaxonomyRepository) ClassificationByID(ctx context.Context, id int64) (*Classification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classifications[id]
	if !ok {
		return nil, ErrClassificationNotFound
	}
	stored := *c
	return &stored, nil
}

// ClassificationsByCategory returns a category's classifications ordered
// by ID.
func (r *MemoryTaxonomyRepository) ClassificationsByCategory(ctx context.Context, categoryID int64) ([]*Classification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	classifications := make([]*Classification, 0)
	for _, c := range r.classifications {
		if c.CategoryID == categoryID {
			stored := *c
			classifications = append(classifications, &stored)
		}
	}
	sort.Slice(classifications, func(i, j int) bool { return classifications[i].ID < classifications[j].ID })
	return classifications, nil
}

// DescriptorsByIDs returns the subset of the given descriptor IDs that
// exist, keyed by ID.
func (r *MemoryTaxonomyRepository) DescriptorsByIDs(ctx context.Context, ids []int64) (map[int64]Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	found := make(map[int64]Descriptor, len(ids))
	for _, id := range ids {
		if d, ok := r.descriptors[id]; ok {
			found[id] = d
		}
	}
	return found, nil
}

// DescriptorsByCategory returns a category's required descriptors in
// attachment order.
func (r *MemoryTaxonomyRepository) DescriptorsByCategory(ctx context.Context, categoryID int64) ([]Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.categoryDescriptors[categoryID]
	descriptors := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.descriptors[id]; ok {
			descriptors = append(descriptors, d)
		}
	}
	return descriptors, nil
}

// MemoryPermissionStore is an in-memory PermissionStore guarded by an
// RWMutex. Unknown users resolve to an empty permission set.
type MemoryPermissionStore struct {
	mu    sync.RWMutex
	perms map[string]auth.PermissionSet
}

// NewMemoryPermissionStore creates an empty in-memory permission store.
func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{perms: make(map[string]auth.PermissionSet)}
}

// Grant assigns the named permissions to a user, replacing any previous
// grant.
func (s *MemoryPermissionStore) Grant(userID string, perms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[userID] = auth.NewPermissionSet(perms...)
}

// PermissionsForUser returns the user's stored permission set.
func (s *MemoryPermissionStore) PermissionsForUser(ctx context.Context, userID string) (auth.PermissionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if set, ok := s.perms[userID]; ok {
		return set, nil
	}
	return auth.NewPermissionSet(), nil
}
