package spot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/rit-atlas/atlas/internal/auth"
)

// int64Array adapts an ID slice for use with = ANY($1).
func int64Array(ids []int64) any {
	return pq.Array(ids)
}

// PostgresSpotRepository implements SpotRepository using PostgreSQL.
// Spot creation inserts the spot row and its descriptor values in one
// transaction so a rejected write leaves nothing behind.
type PostgresSpotRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSpotRepository creates a PostgresSpotRepository.
func NewPostgresSpotRepository(db *sql.DB, logger *slog.Logger) *PostgresSpotRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSpotRepository{db: db, logger: logger}
}

// Create inserts the spot and attaches its descriptor values atomically.
func (r *PostgresSpotRepository) Create(ctx context.Context, s *Spot) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", slog.String("error", err.Error()))
		}
	}()

	insertSpot := `
		INSERT INTO spots (notes, lat, lng, approved, user_id, type_id, classification_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insertSpot,
		s.Notes, s.Lat, s.Lng, s.Approved, s.UserID, s.TypeID, s.ClassificationID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert spot: %w", err)
	}

	insertValue := `
		INSERT INTO descriptor_spot (spot_id, descriptor_id, value)
		VALUES ($1, $2, $3)
	`
	for descriptorID, value := range s.Descriptors {
		if _, err := tx.ExecContext(ctx, insertValue, s.ID, descriptorID, value); err != nil {
			return fmt.Errorf("attach descriptor %d: %w", descriptorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Debug("spot persisted", slog.Int64("spot_id", s.ID))
	return nil
}

// Update rewrites a spot's mutable columns.
func (r *PostgresSpotRepository) Update(ctx context.Context, s *Spot) error {
	query := `
		UPDATE spots
		SET notes = $2, lat = $3, lng = $4, approved = $5, classification_id = $6, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		s.ID, s.Notes, s.Lat, s.Lng, s.Approved, s.ClassificationID)
	if err != nil {
		return fmt.Errorf("update spot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update spot: %w", err)
	}
	if affected == 0 {
		return ErrSpotNotFound
	}
	return nil
}

// GetByID retrieves a spot and its descriptor values.
func (r *PostgresSpotRepository) GetByID(ctx context.Context, id int64) (*Spot, error) {
	query := `
		SELECT id, notes, lat, lng, approved, user_id, type_id, classification_id, created_at, updated_at
		FROM spots
		WHERE id = $1
	`
	s := &Spot{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Notes, &s.Lat, &s.Lng, &s.Approved, &s.UserID, &s.TypeID, &s.ClassificationID,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get spot: %w", err)
	}

	if err := r.loadDescriptors(ctx, []*Spot{s}); err != nil {
		return nil, err
	}
	return s, nil
}

// List returns all spots with their descriptor values, ordered by ID.
func (r *PostgresSpotRepository) List(ctx context.Context) ([]*Spot, error) {
	query := `
		SELECT id, notes, lat, lng, approved, user_id, type_id, classification_id, created_at, updated_at
		FROM spots
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}
	defer rows.Close()

	var spots []*Spot
	for rows.Next() {
		s := &Spot{}
		if err := rows.Scan(
			&s.ID, &s.Notes, &s.Lat, &s.Lng, &s.Approved, &s.UserID, &s.TypeID, &s.ClassificationID,
			&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		spots = append(spots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}

	if err := r.loadDescriptors(ctx, spots); err != nil {
		return nil, err
	}
	return spots, nil
}

// loadDescriptors fills the Descriptors map of each given spot.
func (r *PostgresSpotRepository) loadDescriptors(ctx context.Context, spots []*Spot) error {
	if len(spots) == 0 {
		return nil
	}
	byID := make(map[int64]*Spot, len(spots))
	ids := make([]int64, 0, len(spots))
	for _, s := range spots {
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	query := `
		SELECT spot_id, descriptor_id, value
		FROM descriptor_spot
		WHERE spot_id = ANY($1)
	`
	rows, err := r.db.QueryContext(ctx, query, int64Array(ids))
	if err != nil {
		return fmt.Errorf("load spot descriptors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var spotID, descriptorID int64
		var value string
		if err := rows.Scan(&spotID, &descriptorID, &value); err != nil {
			return fmt.Errorf("scan spot descriptor: %w", err)
		}
		s := byID[spotID]
		if s == nil {
			continue
		}
		if s.Descriptors == nil {
			s.Descriptors = make(map[int64]string)
		}
		s.Descriptors[descriptorID] = value
	}
	return rows.Err()
}

// PostgresTaxonomyRepository implements TaxonomyRepository using
// PostgreSQL.
type PostgresTaxonomyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTaxonomyRepository creates a PostgresTaxonomyRepository.
func NewPostgresTaxonomyRepository(db *sql.DB, logger *slog.Logger) *PostgresTaxonomyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaxonomyRepository{db: db, logger: logger}
}

const categoryColumns = "id, name, crowdsource, under_review_classification_id, public_classification_id"

func scanCategory(row interface{ Scan(...any) error }) (*Category, error) {
	c := &Category{}
	var underReview, public sql.NullInt64
	if err := row.Scan(&c.ID, &c.Name, &c.Crowdsource, &underReview, &public); err != nil {
		return nil, err
	}
	if underReview.Valid {
		c.UnderReviewClassificationID = &underReview.Int64
	}
	if public.Valid {
		c.PublicClassificationID = &public.Int64
	}
	return c, nil
}

// CategoryByID retrieves a category by ID.
func (r *PostgresTaxonomyRepository) CategoryByID(ctx context.Context, id int64) (*Category, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = $1", id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// CategoryByName retrieves a category by exact name.
func (r *PostgresTaxonomyRepository) CategoryByName(ctx context.Context, name string) (*Category, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE name = $1", name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns categories ordered by ID, optionally limited to
// crowdsource categories.
func (r *PostgresTaxonomyRepository) ListCategories(ctx context.Context, crowdsourceOnly bool) ([]*Category, error) {
	query := "SELECT " + categoryColumns + " FROM categories"
	if crowdsourceOnly {
		query += " WHERE crowdsource"
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SaveCategory upserts a category after validating its default
// classification references inside one transaction.
func (r *PostgresTaxonomyRepository) SaveCategory(ctx context.Context, c *Category) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", slog.String("error", err.Error()))
		}
	}()

	for _, ref := range []*int64{c.UnderReviewClassificationID, c.PublicClassificationID} {
		if ref == nil {
			continue
		}
		var categoryID int64
		err := tx.QueryRowContext(ctx,
			"SELECT category_id FROM classifications WHERE id = $1", *ref).Scan(&categoryID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidSystemClassification
		}
		if err != nil {
			return fmt.Errorf("check classification reference: %w", err)
		}
		if c.ID != 0 && categoryID != c.ID {
			return ErrInvalidSystemClassification
		}
	}

	if c.ID == 0 {
		insert := `
			INSERT INTO categories (name, crowdsource, under_review_classification_id, public_classification_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING id
		`
		err = tx.QueryRowContext(ctx, insert,
			c.Name, c.Crowdsource, c.UnderReviewClassificationID, c.PublicClassificationID).Scan(&c.ID)
	} else {
		update := `
			UPDATE categories
			SET name = $2, crowdsource = $3, under_review_classification_id = $4, public_classification_id = $5, updated_at = NOW()
			WHERE id = $1
		`
		_, err = tx.ExecContext(ctx, update,
			c.ID, c.Name, c.Crowdsource, c.UnderReviewClassificationID, c.PublicClassificationID)
	}
	if err != nil {
		return fmt.Errorf("save category: %w", err)
	}

	return tx.Commit()
}

// TypeByName retrieves a type by exact name.
func (r *PostgresTaxonomyRepository) TypeByName(ctx context.Context, name string) (*Type, error) {
	t := &Type{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, category_id FROM types WHERE name = $1", name,
	).Scan(&t.ID, &t.Name, &t.CategoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get type: %w", err)
	}
	return t, nil
}

// TypesByCategory returns a category's types ordered by ID.
func (r *PostgresTaxonomyRepository) TypesByCategory(ctx context.Context, categoryID int64) ([]*Type, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, category_id FROM types WHERE category_id = $1 ORDER BY id", categoryID)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	defer rows.Close()

	types := make([]*Type, 0)
	for rows.Next() {
		t := &Type{}
		if err := rows.Scan(&t.ID, &t.Name, &t.CategoryID); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

const classificationColumns = "id, name, color, kind, COALESCE(view_permission, ''), COALESCE(create_permission, ''), category_id"

func scanClassification(row interface{ Scan(...any) error }) (*Classification, error) {
	c := &Classification{}
	if err := row.Scan(&c.ID, &c.Name, &c.Color, &c.Kind, &c.ViewPermission, &c.CreatePermission, &c.CategoryID); err != nil {
		return nil, err
	}
	return c, nil
}

// ClassificationByID retrieves a classification by ID.
func (r *PostgresTaxonomyRepository) ClassificationByID(ctx context.Context, id int64) (*Classification, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+classificationColumns+" FROM classifications WHERE id = $1", id)
	c, err := scanClassification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClassificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get classification: %w", err)
	}
	return c, nil
}

// ClassificationsByCategory returns a category's classifications ordered
// by ID.
func (r *PostgresTaxonomyRepository) ClassificationsByCategory(ctx context.Context, categoryID int64) ([]*Classification, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+classificationColumns+" FROM classifications WHERE category_id = $1 ORDER BY id", categoryID)
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	defer rows.Close()

	classifications := make([]*Classification, 0)
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		classifications = append(classifications, c)
	}
	return classifications, rows.Err()
}

// DescriptorsByIDs returns the subset of the given descriptor IDs that
// exist, keyed by ID.
func (r *PostgresTaxonomyRepository) DescriptorsByIDs(ctx context.Context, ids []int64) (map[int64]Descriptor, error) {
	found := make(map[int64]Descriptor, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, allowed_values FROM descriptors WHERE id = ANY($1)", int64Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load descriptors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d Descriptor
		if err := rows.Scan(&d.ID, &d.Name, &d.AllowedValues); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		found[d.ID] = d
	}
	return found, rows.Err()
}

// DescriptorsByCategory returns a category's required descriptors
// ordered by descriptor ID.
func (r *PostgresTaxonomyRepository) DescriptorsByCategory(ctx context.Context, categoryID int64) ([]Descriptor, error) {
	query := `
		SELECT d.id, d.name, d.allowed_values
		FROM descriptors d
		JOIN category_descriptor cd ON cd.descriptor_id = d.id
		WHERE cd.category_id = $1
		ORDER BY d.id
	`
	rows, err := r.db.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("load category descriptors: %w", err)
	}
	defer rows.Close()

	descriptors := make([]Descriptor, 0)
	for rows.Next() {
		var d Descriptor
		if err := rows.Scan(&d.ID, &d.Name, &d.AllowedValues); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, rows.Err()
}

// PostgresPermissionStore implements PermissionStore over the
// user_permissions table.
type PostgresPermissionStore struct {
	db *sql.DB
}

// NewPostgresPermissionStore creates a PostgresPermissionStore.
func NewPostgresPermissionStore(db *sql.DB) *PostgresPermissionStore {
	return &PostgresPermissionStore{db: db}
}

// PermissionsForUser returns the user's stored permission names.
// Unknown users resolve to an empty set.
func (s *PostgresPermissionStore) PermissionsForUser(ctx context.Context, userID string) (auth.PermissionSet, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT permission FROM user_permissions WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	return auth.NewPermissionSet(perms...), nil
}
