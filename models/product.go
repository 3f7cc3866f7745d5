package models

import (
	"strings"
	"time"
)

// Marketplace identifies where a listing came from
type Marketplace string

const (
	Rozetka Marketplace = "rozetka"
	Comfy   Marketplace = "comfy"
	Allo    Marketplace = "allo"
	Foxtrot Marketplace = "foxtrot"
	Citrus  Marketplace = "citrus"

	// Self marks reviews submitted directly by users of this service
	Self Marketplace = "self"
)

// Product is the canonical record for one real-world item across marketplaces.
// The natural key is the lower-cased name plus category.
type Product struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:255;not null"`
	NameKey     string `gorm:"size:255;not null;uniqueIndex:idx_products_name_category"`
	Category    string `gorm:"size:255;not null;default:'';uniqueIndex:idx_products_name_category"`
	Description string `gorm:"type:text"`
	ImageURL    string
	IsDetailed  bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Sources []SourceBinding `gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string { return "products" }

// NameKey normalizes a product name into its lookup key
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SourceBinding is one marketplace listing attached to a canonical product.
// There is at most one per (product, marketplace).
type SourceBinding struct {
	ID          int64       `gorm:"primaryKey"`
	ProductID   int64       `gorm:"not null;uniqueIndex:idx_sources_product_marketplace"`
	Marketplace Marketplace `gorm:"size:50;not null;uniqueIndex:idx_sources_product_marketplace"`
	URL         string
	Price       string `gorm:"size:50"` // kept as shown by the marketplace
	LastUpdated time.Time

	Reviews []Review `gorm:"foreignKey:SourceID"`
}

func (SourceBinding) TableName() string { return "product_sources" }

// Review belongs to a single source binding. Text is unique within its binding.
type Review struct {
	ID             int64   `gorm:"primaryKey"`
	SourceID       int64   `gorm:"not null;index"`
	Text           string  `gorm:"type:text;not null"`
	Rating         float64 `gorm:"not null;default:0"`
	ModelSentiment string  `gorm:"size:50;not null;default:'Neutral'"`
	Confidence     float64 `gorm:"not null;default:0"`
	HumanSentiment *string `gorm:"size:50"`
	NeedsReview    bool    `gorm:"not null;default:false"`
	CreatedAt      time.Time
}

func (Review) TableName() string { return "reviews" }

// Sentiment returns the human label when one was given, otherwise the predicted one
func (r *Review) Sentiment() string {
	if r.HumanSentiment != nil && *r.HumanSentiment != "" {
		return *r.HumanSentiment
	}
	return r.ModelSentiment
}
