package chrome

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	widthPattern  = regexp.MustCompile(`width:\s*([\d.]+)\s*%`)
	ratingPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:/\s*(\d+))?`)
)

// parseRating turns a scraped rating into a 0-5 score. Unreadable input is 0.
func parseRating(raw string, mode RatingMode) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	var score float64
	switch mode {
	case RatingWidth:
		m := widthPattern.FindStringSubmatch(raw)
		if m == nil {
			return 0
		}
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0
		}
		score = pct / 20
	default:
		m := ratingPattern.FindStringSubmatch(raw)
		if m == nil {
			return 0
		}
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err != nil {
			return 0
		}
		score = v
		if m[2] != "" {
			if scale, err := strconv.ParseFloat(m[2], 64); err == nil && scale > 0 {
				score = v / scale * 5
			}
		}
	}
	return math.Round(math.Min(math.Max(score, 0), 5)*10) / 10
}

type tileSelectors struct {
	Tile     string `json:"tile"`
	Link     string `json:"link"`
	Name     string `json:"name"`
	NameAttr string `json:"nameAttr"`
	Price    string `json:"price"`
	Image    string `json:"image"`
}

type detailSelectors struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Image string `json:"image"`
}

type reviewSelectors struct {
	Item   string `json:"item"`
	Text   string `json:"text"`
	Rating string `json:"rating"`
	// read the style attribute instead of the text of the rating element
	Style bool `json:"style"`
}

type rawTile struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Price string `json:"price"`
	Image string `json:"image"`
}

type rawDetail struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Image string `json:"image"`
}

type rawReview struct {
	Text   string `json:"text"`
	Rating string `json:"rating"`
}

const tilesJS = `
(function(sel) {
	var out = [];
	document.querySelectorAll(sel.tile).forEach(function(tile) {
		var link = sel.link ? tile.querySelector(sel.link) : tile;
		if (!link) return;
		var name = '';
		if (sel.nameAttr) {
			name = link.getAttribute(sel.nameAttr) || '';
		} else {
			var nameEl = sel.name ? tile.querySelector(sel.name) : link;
			name = nameEl ? nameEl.innerText : '';
		}
		var price = sel.price ? tile.querySelector(sel.price) : null;
		var img = sel.image ? tile.querySelector(sel.image) : null;
		out.push({
			name: name.trim(),
			url: link.href || '',
			price: price ? price.innerText.trim() : '',
			image: img ? (img.currentSrc || img.src || img.getAttribute('data-src') || '') : ''
		});
	});
	return out;
})(%s)`

const detailJS = `
(function(sel) {
	function text(q) {
		if (!q) return '';
		var el = document.querySelector(q);
		return el ? el.innerText.trim() : '';
	}
	var img = sel.image ? document.querySelector(sel.image) : null;
	return {
		name: text(sel.name),
		price: text(sel.price),
		image: img ? (img.currentSrc || img.src || '') : ''
	};
})(%s)`

const reviewsJS = `
(function(sel) {
	var out = [];
	document.querySelectorAll(sel.item).forEach(function(item) {
		var textEl = sel.text ? item.querySelector(sel.text) : item;
		if (!textEl) return;
		var rating = '';
		var ratingEl = sel.rating ? item.querySelector(sel.rating) : null;
		if (ratingEl) {
			rating = sel.style ? (ratingEl.getAttribute('style') || '') : ratingEl.innerText.trim();
		}
		out.push({text: textEl.innerText.trim(), rating: rating});
	});
	return out;
})(%s)`

// script binds selectors into one of the extraction templates. Selectors
// travel as a JSON literal so quotes inside them need no escaping.
func script(tmpl string, selectors interface{}) (string, error) {
	b, err := json.Marshal(selectors)
	if err != nil {
		return "", fmt.Errorf("failed to encode selectors: %w", err)
	}
	return fmt.Sprintf(tmpl, b), nil
}

func (s Site) tileSelectors() tileSelectors {
	return tileSelectors{
		Tile:     s.Tile,
		Link:     s.TileLink,
		Name:     s.TileName,
		NameAttr: s.NameAttr,
		Price:    s.TilePrice,
		Image:    s.TileImage,
	}
}

func (s Site) detailSelectors() detailSelectors {
	return detailSelectors{Name: s.DetailName, Price: s.DetailPrice, Image: s.DetailImage}
}

func (s Site) reviewSelectors() reviewSelectors {
	return reviewSelectors{
		Item:   s.ReviewItem,
		Text:   s.ReviewText,
		Rating: s.ReviewRating,
		Style:  s.Rating == RatingWidth,
	}
}
