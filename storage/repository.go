package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Zakerman110/master-work-644/models"
)

// GormRepository implements ProductRepository and ReviewRepository on gorm
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository over an open, migrated database
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return &RepositoryError{Op: op, Err: err}
}

func (r *GormRepository) FindByName(ctx context.Context, name, category string) (*models.Product, error) {
	q := r.db.WithContext(ctx).Where("name_key = ?", models.NameKey(name))
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var p models.Product
	err := q.Order("is_detailed DESC").Order("id ASC").First(&p).Error
	if err != nil {
		return nil, wrap("find_by_name", err)
	}
	return &p, nil
}

func (r *GormRepository) GetOrCreate(ctx context.Context, name, category string) (*models.Product, bool, error) {
	key := models.NameKey(name)
	db := r.db.WithContext(ctx)

	var p models.Product
	err := db.Where("name_key = ? AND category = ?", key, category).First(&p).Error
	if err == nil {
		return &p, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, wrap("get_or_create", err)
	}

	p = models.Product{Name: strings.TrimSpace(name), NameKey: key, Category: category}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
	if res.Error != nil {
		return nil, false, wrap("get_or_create", res.Error)
	}
	if res.RowsAffected == 1 {
		return &p, true, nil
	}

	// another request created it between our read and insert
	p = models.Product{}
	if err := db.Where("name_key = ? AND category = ?", key, category).First(&p).Error; err != nil {
		return nil, false, wrap("get_or_create", err)
	}
	return &p, false, nil
}

func (r *GormRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Preload("Sources", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Sources.Reviews", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&p, id).Error
	if err != nil {
		return nil, wrap("get_by_id", err)
	}
	return &p, nil
}

func (r *GormRepository) SearchByName(ctx context.Context, query, category string, limit int) ([]models.Product, error) {
	q := r.db.WithContext(ctx).
		Where("name_key LIKE ? ESCAPE '\\'", "%"+escapeLike(models.NameKey(query))+"%")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var products []models.Product
	if err := q.Order("id ASC").Find(&products).Error; err != nil {
		return nil, wrap("search_by_name", err)
	}
	return products, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *GormRepository) UpdateImageURL(ctx context.Context, productID int64, imageURL string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("image_url", imageURL).Error
	return wrap("update_image_url", err)
}

func (r *GormRepository) SetDetailed(ctx context.Context, productID int64, detailed bool) error {
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("is_detailed", detailed).Error
	return wrap("set_detailed", err)
}

// UpsertSourceBinding creates the (product, marketplace) binding or updates its url, price and timestamp in place
func (r *GormRepository) UpsertSourceBinding(ctx context.Context, productID int64, marketplace models.Marketplace, url, price string) (*models.SourceBinding, error) {
	db := r.db.WithContext(ctx)
	b := models.SourceBinding{
		ProductID:   productID,
		Marketplace: marketplace,
		URL:         url,
		Price:       price,
		LastUpdated: time.Now(),
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "marketplace"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "price", "last_updated"}),
	}).Create(&b).Error
	if err != nil {
		return nil, wrap("upsert_source_binding", err)
	}

	// re-read so the id is the stored row's on both insert and update
	var stored models.SourceBinding
	err = db.Where("product_id = ? AND marketplace = ?", productID, marketplace).First(&stored).Error
	if err != nil {
		return nil, wrap("upsert_source_binding", err)
	}
	return &stored, nil
}

func (r *GormRepository) ListSourceBindings(ctx context.Context, productID int64) ([]models.SourceBinding, error) {
	var bindings []models.SourceBinding
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id ASC").
		Find(&bindings).Error
	if err != nil {
		return nil, wrap("list_source_bindings", err)
	}
	return bindings, nil
}

func (r *GormRepository) CountSourceBindings(ctx context.Context, productID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.SourceBinding{}).
		Where("product_id = ? AND marketplace <> ?", productID, models.Self).
		Count(&n).Error
	if err != nil {
		return 0, wrap("count_source_bindings", err)
	}
	return n, nil
}

func (r *GormRepository) ListReviewTexts(ctx context.Context, sourceID int64) (map[string]struct{}, error) {
	var texts []string
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("source_id = ?", sourceID).
		Pluck("text", &texts).Error
	if err != nil {
		return nil, wrap("list_review_texts", err)
	}

	set := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		set[t] = struct{}{}
	}
	return set, nil
}

func (r *GormRepository) InsertReviews(ctx context.Context, sourceID int64, reviews []models.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	for i := range reviews {
		reviews[i].SourceID = sourceID
	}
	return wrap("insert_reviews", r.db.WithContext(ctx).CreateInBatches(reviews, 100).Error)
}

func (r *GormRepository) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	var rv models.Review
	if err := r.db.WithContext(ctx).First(&rv, id).Error; err != nil {
		return nil, wrap("get_review", err)
	}
	return &rv, nil
}

// SetHumanSentiment stores a moderator's label and clears the needs-review flag
func (r *GormRepository) SetHumanSentiment(ctx context.Context, id int64, sentiment string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"human_sentiment": sentiment,
			"needs_review":    false,
		})
	if res.Error != nil {
		return wrap("set_human_sentiment", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) ListNeedingModeration(ctx context.Context, limit int) ([]models.Review, error) {
	q := r.db.WithContext(ctx).Where("needs_review = ?", true).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var reviews []models.Review
	if err := q.Find(&reviews).Error; err != nil {
		return nil, wrap("list_needing_moderation", err)
	}
	return reviews, nil
}
