package chrome

import (
	"net/url"
	"sort"
	"strings"

	"github.com/Zakerman110/master-work-644/models"
)

// RatingMode says how a review's star rating is rendered on a site
type RatingMode int

const (
	// RatingWidth reads a percentage from an inline "width: 80%" style
	RatingWidth RatingMode = iota
	// RatingText reads text such as "4/5" or "4,5"
	RatingText
)

// Site is the selector set for one marketplace. Empty selectors are skipped.
type Site struct {
	Marketplace models.Marketplace
	SearchURL   string // the url-escaped query is appended
	Searchable  bool   // expose search hits for ranking instead of taking the first one

	Tile      string // one search result
	TileLink  string // relative to Tile; empty means the tile is the link
	TileName  string // relative to Tile; empty means the link text
	NameAttr  string // read the name from this link attribute instead of text
	TilePrice string
	TileImage string

	DetailName  string
	DetailPrice string
	DetailImage string

	ReviewSuffix string // appended to the product URL when reviews live on their own page
	ReviewItem   string
	ReviewText   string // relative to ReviewItem; empty means the item text
	ReviewRating string // relative to ReviewItem
	Rating       RatingMode
}

var sites = map[models.Marketplace]Site{
	models.Rozetka: {
		Marketplace:  models.Rozetka,
		SearchURL:    "https://rozetka.com.ua/ua/search/?text=",
		Searchable:   true,
		Tile:         ".goods-tile__inner",
		TileLink:     ".goods-tile__heading",
		TileName:     ".goods-tile__title",
		TilePrice:    ".goods-tile__price-value",
		TileImage:    "a.goods-tile__picture img",
		DetailName:   "h1",
		DetailPrice:  ".product-price__big",
		DetailImage:  ".main-slider__item img",
		ReviewSuffix: "comments/",
		ReviewItem:   ".r-item__content",
		ReviewText:   ".r-item__text",
		ReviewRating: ".rating-box__active",
		Rating:       RatingWidth,
	},
	models.Comfy: {
		Marketplace:  models.Comfy,
		SearchURL:    "https://comfy.ua/search/?q=",
		Tile:         ".prdl-item",
		TileLink:     ".prdl-item__name",
		TilePrice:    ".products-list-item-price__actions-price-current",
		TileImage:    ".products-list-item__img img",
		DetailName:   ".gen-tab__name",
		DetailPrice:  ".price__current",
		DetailImage:  ".gallery img",
		ReviewItem:   "#feedback .r-item",
		ReviewText:   ".r-item__text",
		ReviewRating: ".icon-rating__active",
		Rating:       RatingWidth,
	},
	models.Allo: {
		Marketplace:  models.Allo,
		SearchURL:    "https://allo.ua/ua/catalogsearch/result/?q=",
		Tile:         ".product-card",
		TileLink:     ".product-card__title",
		TilePrice:    ".v-pb__cur .sum",
		TileImage:    ".product-card__img img",
		DetailName:   "h1",
		DetailPrice:  ".p-trade-price__current>span",
		DetailImage:  ".main-gallery__link img",
		ReviewItem:   `[itemprop="review"]`,
		ReviewText:   ".product-comment__text .text",
		ReviewRating: ".user__rating--estimate",
		Rating:       RatingWidth,
	},
	models.Foxtrot: {
		Marketplace:  models.Foxtrot,
		SearchURL:    "https://www.foxtrot.com.ua/uk/search?query=",
		Tile:         ".card",
		TileLink:     ".card__title",
		TilePrice:    ".card-price",
		TileImage:    ".card__image img",
		DetailName:   "#product-page-title",
		DetailPrice:  ".product-box__main_price",
		DetailImage:  ".product-img__carousel img",
		ReviewItem:   ".product-comment__item",
		ReviewText:   ".product-comment__item-text",
		ReviewRating: ".product-comment__item-rating-num",
		Rating:       RatingText,
	},
	models.Citrus: {
		Marketplace:  models.Citrus,
		SearchURL:    "https://www.ctrs.com.ua/ru/search/?query=",
		Searchable:   true,
		Tile:         `.catalog-facet a[class*="MainProductCard-module__link"]`,
		NameAttr:     "title",
		TilePrice:    `[class*="Price_price_"]`,
		TileImage:    "img",
		DetailName:   "h1",
		DetailPrice:  `div[class*="Price_price_"]`,
		DetailImage:  `[class*="Gallery"] img`,
		ReviewItem:   `div[class*="Reviews_comment"] > div`,
		ReviewText:   `[class*="Reviews_text"]`,
		ReviewRating: `[class*="Rating_active"]`,
		Rating:       RatingWidth,
	},
}

// SiteFor returns the built-in selector set for a marketplace name
func SiteFor(name string) (Site, bool) {
	s, ok := sites[models.Marketplace(strings.ToLower(strings.TrimSpace(name)))]
	return s, ok
}

// Known lists the marketplaces with a built-in selector set
func Known() []string {
	out := make([]string, 0, len(sites))
	for m := range sites {
		out = append(out, string(m))
	}
	sort.Strings(out)
	return out
}

func (s Site) searchURL(query string) string {
	return s.SearchURL + url.QueryEscape(strings.TrimSpace(query))
}

// reviewsURL is where the product's reviews are listed
func (s Site) reviewsURL(productURL string) string {
	if s.ReviewSuffix == "" {
		return productURL
	}
	u, err := url.Parse(productURL)
	if err != nil {
		return productURL
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.Path += s.ReviewSuffix
	u.RawQuery, u.Fragment = "", ""
	return u.String()
}
