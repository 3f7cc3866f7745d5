package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Zakerman110/master-work-644/models"
)

// PrintProductReport formats the report for a terminal
func PrintProductReport(w io.Writer, report *models.ProductReport) {
	border := strings.Repeat("═", 55)
	thin := strings.Repeat("─", 55)
	p := report.Product

	fmt.Fprintf(w, "\n╔%s╗\n", border)
	fmt.Fprintf(w, "║%s║\n", center(truncate(p.Name, 53), 55))
	fmt.Fprintf(w, "╚%s╝\n", border)

	fmt.Fprintf(w, "\n OVERVIEW\n%s\n", thin)
	fmt.Fprintf(w, "  Product ID          : %d\n", p.ID)
	if p.Category != "" {
		fmt.Fprintf(w, "  Category            : %s\n", p.Category)
	}
	fmt.Fprintf(w, "  Detailed            : %t\n", p.IsDetailed)
	fmt.Fprintf(w, "  Marketplaces        : %d\n", report.SourceCount)
	fmt.Fprintf(w, "  Reviews             : %d\n", report.TotalReviews)
	fmt.Fprintf(w, "  Average Rating      : %.2f\n", report.AverageRating)
	fmt.Fprintf(w, "  Awaiting Moderation : %d\n", report.PendingModeration)

	if len(report.PriceBySource) > 0 {
		fmt.Fprintf(w, "\n PRICES\n%s\n", thin)
		for _, m := range sortedMarketplaces(report.PriceBySource) {
			price := report.PriceBySource[m]
			if price == "" {
				price = "-"
			}
			fmt.Fprintf(w, "  %-12s %s\n", string(m)+":", price)
		}
	}

	if len(report.ReviewsBySource) > 0 {
		fmt.Fprintf(w, "\n REVIEWS PER MARKETPLACE\n%s\n", thin)
		for _, m := range sortedMarketplaces(report.ReviewsBySource) {
			n := report.ReviewsBySource[m]
			fmt.Fprintf(w, "  %-12s %3d  %s\n", string(m)+":", n, strings.Repeat("▓", min(n, 40)))
		}
	}

	if len(report.SentimentBreakdown) > 0 {
		fmt.Fprintf(w, "\n SENTIMENT\n%s\n", thin)
		labels := make([]string, 0, len(report.SentimentBreakdown))
		for l := range report.SentimentBreakdown {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(w, "  %-12s %3d\n", l+":", report.SentimentBreakdown[l])
		}
	}

	if len(report.TopRated) > 0 {
		fmt.Fprintf(w, "\n TOP %d REVIEWS\n%s\n", len(report.TopRated), thin)
		for i, r := range report.TopRated {
			fmt.Fprintf(w, "  %d. %-40s %.1f\n", i+1, truncate(r.Text, 40), r.Rating)
		}
	}

	fmt.Fprintf(w, "\n%s\n\n", border)
}

// PrintScrapeOutcomes lists what each marketplace task did
func PrintScrapeOutcomes(w io.Writer, res *ScrapeResult) {
	if res.Cached {
		fmt.Fprintln(w, " Product was already detailed, no marketplace contacted")
		return
	}
	for _, o := range res.Outcomes {
		line := fmt.Sprintf("  %-10s %-16s %6.1fs", o.Marketplace, o.Status, o.Elapsed.Seconds())
		if o.Query != "" {
			line += fmt.Sprintf("  query=%q score=%.1f", o.Query, o.Score)
		}
		if o.Status == StatusMerged {
			line += fmt.Sprintf("  +%d reviews", o.ReviewsAdded)
		}
		fmt.Fprintln(w, line)
	}
}

func sortedMarketplaces[V any](m map[models.Marketplace]V) []models.Marketplace {
	keys := make([]models.Marketplace, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func center(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	pad := (width - len(runes)) / 2
	return strings.Repeat(" ", pad) + s + strings.Repeat(" ", width-len(runes)-pad)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
