package spot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rit-atlas/atlas/internal/auth"
)

// User-facing messages returned by spot creation.
const (
	MsgCreatedApproved = "Your spot has been created successfully!"
	MsgCreatedPending  = "The spot you created will be reviewed and published once approved! " +
		"Until then hang tight, you'll get an email when your spot has been reviewed."
)

// ApprovalNotifier is notified after a spot is approved. Delivery is
// fire-and-forget; implementations must not block the caller.
type ApprovalNotifier interface {
	SpotApproved(ctx context.Context, s *Spot)
}

// Service composes validation, authorization, and persistence for the
// spot workflow.
type Service struct {
	spots    SpotRepository
	taxonomy TaxonomyRepository
	perms    PermissionStore
	notifier ApprovalNotifier
	logger   *slog.Logger
}

// NewService creates a Service. notifier may be nil, in which case
// approvals emit no notification.
func NewService(spots SpotRepository, taxonomy TaxonomyRepository, perms PermissionStore, notifier ApprovalNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		spots:    spots,
		taxonomy: taxonomy,
		perms:    perms,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateInput carries a decoded spot submission. Pointer fields
// distinguish absent values from zero values; Descriptors keys are the
// raw submitted descriptor IDs.
type CreateInput struct {
	Notes            *string
	Descriptors      map[string]string
	TypeName         *string
	Lat              *float64
	Lng              *float64
	ClassificationID *int64
}

// validateRequired checks field presence. Shape errors (non-numeric
// lat/lng/classification_id) are reported by the HTTP layer during
// decoding; by the time input reaches the service those fields are
// either absent or well-typed.
func (in CreateInput) validateRequired() Bag {
	bag := NewBag()
	if in.Descriptors == nil {
		bag.Add("descriptors", "The descriptors field is required.")
	}
	if in.TypeName == nil || *in.TypeName == "" {
		bag.Add("type_name", "The type_name field is required.")
	}
	if in.Lat == nil {
		bag.Add("lat", "The lat field is required.")
	}
	if in.Lng == nil {
		bag.Add("lng", "The lng field is required.")
	}
	if in.ClassificationID == nil {
		bag.Add("classification_id", "The classification_id field is required.")
	}
	return bag
}

// Create runs the submission pipeline: field presence, reference
// resolution, classification downgrade, category authorization, and
// descriptor validation, accumulating errors from every step before
// deciding. On success the spot and its validated descriptors are
// persisted atomically and a path-dependent message is returned.
//
// A non-empty Bag means the submission was rejected and nothing was
// persisted. A non-nil error means infrastructure failure.
func (s *Service) Create(ctx context.Context, principal *auth.Principal, in CreateInput) (*Spot, string, Bag, error) {
	// Field presence is terminal: reference lookups need the fields.
	bag := in.validateRequired()
	if !bag.Empty() {
		return nil, "", bag, nil
	}

	typ, err := s.taxonomy.TypeByName(ctx, *in.TypeName)
	if err != nil && !errors.Is(err, ErrTypeNotFound) {
		return nil, "", nil, fmt.Errorf("resolve type: %w", err)
	}
	requested, err := s.taxonomy.ClassificationByID(ctx, *in.ClassificationID)
	if err != nil && !errors.Is(err, ErrClassificationNotFound) {
		return nil, "", nil, fmt.Errorf("resolve classification: %w", err)
	}
	if typ == nil || requested == nil {
		bag.Add(KeyInvalid, "You've provided an invalid type or classification.")
	}

	classification := requested
	if requested != nil {
		resolved, resolveBag, err := ResolveClassification(ctx, s.taxonomy, principal, requested)
		if err != nil {
			return nil, "", nil, err
		}
		bag.Merge(resolveBag)
		classification = resolved
	}

	var validated map[int64]string
	if typ != nil {
		category, err := s.taxonomy.CategoryByID(ctx, typ.CategoryID)
		if err != nil {
			return nil, "", nil, fmt.Errorf("resolve category: %w", err)
		}
		bag.Merge(AuthorizeSubmission(principal, category))

		accepted, descriptorBag, err := s.validateDescriptors(ctx, in.Descriptors, category.ID)
		if err != nil {
			return nil, "", nil, err
		}
		validated = accepted
		bag.Merge(descriptorBag)
	}

	if !bag.Empty() {
		return nil, "", bag, nil
	}

	approved := principal.Can(auth.PermApproveSpots)
	created := &Spot{
		Notes:            notes(in.Notes),
		Lat:              *in.Lat,
		Lng:              *in.Lng,
		Approved:         approved,
		UserID:           principal.ID,
		TypeID:           typ.ID,
		ClassificationID: classification.ID,
		Descriptors:      validated,
	}
	if err := s.spots.Create(ctx, created); err != nil {
		return nil, "", nil, fmt.Errorf("create spot: %w", err)
	}

	s.logger.Info("spot created",
		slog.Int64("spot_id", created.ID),
		slog.String("user_id", principal.ID),
		slog.Bool("approved", approved))

	message := MsgCreatedPending
	if approved {
		message = MsgCreatedApproved
	}
	return created, message, NewBag(), nil
}

// validateDescriptors parses submitted descriptor keys and applies the
// descriptor validator against the category's required set.
func (s *Service) validateDescriptors(ctx context.Context, raw map[string]string, categoryID int64) (map[int64]string, Bag, error) {
	bag := NewBag()
	submitted := make(map[int64]string, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			bag.Add(KeyDescriptors, fmt.Sprintf("Descriptor %s does not exist", key))
			continue
		}
		submitted[id] = value
	}

	ids := make([]int64, 0, len(submitted))
	for id := range submitted {
		ids = append(ids, id)
	}
	known, err := s.taxonomy.DescriptorsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load descriptors: %w", err)
	}
	required, err := s.taxonomy.DescriptorsByCategory(ctx, categoryID)
	if err != nil {
		return nil, nil, fmt.Errorf("load category descriptors: %w", err)
	}

	validated, validateBag := ValidateDescriptors(submitted, required, known)
	return validated, bag.Merge(validateBag), nil
}

// List returns the spots the principal may view.
func (s *Service) List(ctx context.Context, principal *auth.Principal) ([]*Spot, error) {
	spots, err := s.spots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}

	classifications := make(map[int64]*Classification)
	for _, sp := range spots {
		if _, ok := classifications[sp.ClassificationID]; ok {
			continue
		}
		c, err := s.taxonomy.ClassificationByID(ctx, sp.ClassificationID)
		if err != nil {
			if errors.Is(err, ErrClassificationNotFound) {
				continue
			}
			return nil, fmt.Errorf("load classification %d: %w", sp.ClassificationID, err)
		}
		classifications[sp.ClassificationID] = c
	}

	return FilterVisible(spots, classifications, principal), nil
}

// Approve marks a spot approved. When the spot's author cannot create
// designated spots, the spot is reassigned to its category's public
// classification; a category missing that reference blocks the approval
// with ErrMissingSystemClassification instead of proceeding. On success
// the owner is notified asynchronously.
func (s *Service) Approve(ctx context.Context, spotID int64) error {
	sp, err := s.spots.GetByID(ctx, spotID)
	if err != nil {
		return err
	}
	sp.Approved = true

	authorPerms, err := s.perms.PermissionsForUser(ctx, sp.UserID)
	if err != nil {
		return fmt.Errorf("load author permissions: %w", err)
	}
	if !authorPerms.Can(auth.PermCreateDesignatedSpots) {
		classification, err := s.taxonomy.ClassificationByID(ctx, sp.ClassificationID)
		if err != nil {
			return fmt.Errorf("load classification: %w", err)
		}
		category, err := s.taxonomy.CategoryByID(ctx, classification.CategoryID)
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}
		if category.PublicClassificationID == nil {
			return fmt.Errorf("category %d: %w", category.ID, ErrMissingSystemClassification)
		}
		sp.ClassificationID = *category.PublicClassificationID
	}

	if err := s.spots.Update(ctx, sp); err != nil {
		return fmt.Errorf("update spot: %w", err)
	}

	s.logger.Info("spot approved", slog.Int64("spot_id", sp.ID), slog.String("user_id", sp.UserID))
	if s.notifier != nil {
		s.notifier.SpotApproved(ctx, sp)
	}
	return nil
}

// Defaults describes the data the frontend needs to render the spot
// submission form.
type Defaults struct {
	RequiredData             map[string]string `json:"requiredData"`
	AvailableTypes           []*Type           `json:"availableTypes"`
	RequiredDescriptors      []Descriptor      `json:"requiredDescriptors"`
	AvailableClassifications []*Classification `json:"availableClassifications"`
	AvailableCategories      []*CategoryDetail `json:"availableCategories"`
}

// CategoryDetail is a category with its types, classifications, and
// descriptors loaded.
type CategoryDetail struct {
	Category        *Category         `json:"category"`
	Types           []*Type           `json:"types"`
	Classifications []*Classification `json:"classifications"`
	Descriptors     []Descriptor      `json:"descriptors"`
}

// requiredSpotData is the submission schema advertised to the frontend.
var requiredSpotData = map[string]string{
	"lat":               "number",
	"lng":               "number",
	"notes":             "string",
	"descriptors":       "object",
	"type_id":           "number",
	"classification_id": "number",
}

// GetDefaults returns the categories available to the principal with
// their taxonomy, plus the selected category's types, descriptors, and
// the classifications the principal may request. An empty categoryName
// selects the first available category.
func (s *Service) GetDefaults(ctx context.Context, principal *auth.Principal, categoryName string) (*Defaults, error) {
	crowdsourceOnly := !principal.Can(auth.PermCreateDesignatedSpots)
	categories, err := s.taxonomy.ListCategories(ctx, crowdsourceOnly)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	var selected *Category
	if categoryName != "" {
		selected, err = s.taxonomy.CategoryByName(ctx, categoryName)
		if err != nil {
			return nil, err
		}
	} else if len(categories) > 0 {
		selected = categories[0]
	}
	if selected == nil {
		return nil, ErrCategoryNotFound
	}

	details := make([]*CategoryDetail, 0, len(categories))
	for _, c := range categories {
		detail, err := s.categoryDetail(ctx, c)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}

	selectedDetail, err := s.categoryDetail(ctx, selected)
	if err != nil {
		return nil, err
	}

	return &Defaults{
		RequiredData:             requiredSpotData,
		AvailableTypes:           selectedDetail.Types,
		RequiredDescriptors:      selectedDetail.Descriptors,
		AvailableClassifications: FilterCreatable(selectedDetail.Classifications, principal),
		AvailableCategories:      details,
	}, nil
}

func (s *Service) categoryDetail(ctx context.Context, c *Category) (*CategoryDetail, error) {
	types, err := s.taxonomy.TypesByCategory(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load types for category %d: %w", c.ID, err)
	}
	classifications, err := s.taxonomy.ClassificationsByCategory(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load classifications for category %d: %w", c.ID, err)
	}
	descriptors, err := s.taxonomy.DescriptorsByCategory(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load descriptors for category %d: %w", c.ID, err)
	}
	return &CategoryDetail{
		Category:        c,
		Types:           types,
		Classifications: classifications,
		Descriptors:     descriptors,
	}, nil
}

func notes(n *string) string {
	if n == nil {
		return ""
	}
	return *n
}
