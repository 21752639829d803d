package tagging

import (
	"regexp"
	"strings"
)

// Category names the tagger can suggest, in scoring order.
const (
	CategoryFood          = "Food & Dining"
	CategoryTransport     = "Transportation"
	CategoryShopping      = "Shopping"
	CategoryBills         = "Bills & Utilities"
	CategoryEntertainment = "Entertainment"
	CategoryHealthcare    = "Healthcare"
	CategoryFinance       = "Finance"
	CategoryEducation     = "Education"
)

type keywordSet struct {
	category string
	keywords []string
}

var categoryKeywords = []keywordSet{
	{CategoryFood, []string{
		"restaurant", "cafe", "coffee", "pizza", "burger", "food", "dining",
		"mcdonalds", "starbucks", "subway", "kfc", "dominos", "uber eats",
		"doordash", "grubhub", "delivery", "takeout", "dine", "eat",
	}},
	{CategoryTransport, []string{
		"uber", "lyft", "taxi", "gas", "fuel", "shell", "exxon", "chevron",
		"bp", "mobil", "parking", "metro", "bus", "train", "airline",
		"flight", "car rental", "hertz", "avis", "enterprise",
	}},
	{CategoryShopping, []string{
		"amazon", "walmart", "target", "costco", "ebay", "store", "shop",
		"retail", "mall", "clothing", "shoes", "electronics", "best buy",
		"apple store", "nike", "adidas", "h&m", "zara", "macys",
	}},
	{CategoryBills, []string{
		"electric", "electricity", "water", "gas utility", "internet",
		"phone", "mobile", "verizon", "att", "tmobile", "comcast",
		"utility", "bill", "payment", "service", "subscription",
	}},
	{CategoryEntertainment, []string{
		"netflix", "spotify", "hulu", "disney", "movie", "theater",
		"cinema", "game", "gaming", "steam", "playstation", "xbox",
		"entertainment", "music", "streaming", "youtube", "twitch",
	}},
	{CategoryHealthcare, []string{
		"hospital", "doctor", "medical", "pharmacy", "cvs", "walgreens",
		"health", "dental", "vision", "clinic", "medicine", "prescription",
	}},
	{CategoryFinance, []string{
		"bank", "atm", "fee", "interest", "loan", "credit", "investment",
		"transfer", "deposit", "withdrawal", "finance", "insurance",
	}},
	{CategoryEducation, []string{
		"school", "university", "college", "tuition", "education",
		"learning", "course", "training", "book", "textbook",
	}},
}

type merchantPattern struct {
	re       *regexp.Regexp
	category string
}

var merchantPatterns = []merchantPattern{
	{regexp.MustCompile(`(?i)uber`), CategoryTransport},
	{regexp.MustCompile(`(?i)lyft`), CategoryTransport},
	{regexp.MustCompile(`(?i)starbucks`), CategoryFood},
	{regexp.MustCompile(`(?i)mcdonalds`), CategoryFood},
	{regexp.MustCompile(`(?i)amazon`), CategoryShopping},
	{regexp.MustCompile(`(?i)walmart`), CategoryShopping},
	{regexp.MustCompile(`(?i)netflix`), CategoryEntertainment},
	{regexp.MustCompile(`(?i)spotify`), CategoryEntertainment},
	{regexp.MustCompile(`(?i)cvs`), CategoryHealthcare},
	{regexp.MustCompile(`(?i)walgreens`), CategoryHealthcare},
}

var wordPattern = regexp.MustCompile(`\w+`)

// Categories returns every category the tagger knows, in scoring order.
func Categories() []string {
	out := make([]string, len(categoryKeywords))
	for i, set := range categoryKeywords {
		out[i] = set.category
	}
	return out
}

func matchPattern(merchant string) (string, bool) {
	for _, p := range merchantPatterns {
		if p.re.MatchString(merchant) {
			return p.category, true
		}
	}
	return "", false
}

// keywordScore is a category's keyword weight for one merchant.
type keywordScore struct {
	category string
	score    float64
}

// matchKeywords scores 0.1 per merchant word that overlaps a category keyword,
// capped at 0.3 per category.
func matchKeywords(merchant string) []keywordScore {
	words := wordPattern.FindAllString(strings.ToLower(merchant), -1)

	var scores []keywordScore
	for _, set := range categoryKeywords {
		score := 0.0
		for _, word := range words {
			for _, keyword := range set.keywords {
				if strings.Contains(word, keyword) || strings.Contains(keyword, word) {
					score += 0.1
					break
				}
			}
		}
		if score > 0 {
			scores = append(scores, keywordScore{category: set.category, score: min(score, 0.3)})
		}
	}
	return scores
}

func similarMerchants(merchant string) []string {
	switch {
	case strings.Contains(merchant, "coffee") || strings.Contains(merchant, "cafe"):
		return []string{"Starbucks", "Dunkin", "Local Coffee Shop"}
	case strings.Contains(merchant, "gas") || strings.Contains(merchant, "fuel"):
		return []string{"Shell", "Exxon", "Chevron"}
	case strings.Contains(merchant, "grocery") || strings.Contains(merchant, "market"):
		return []string{"Walmart", "Target", "Kroger"}
	case strings.Contains(merchant, "restaurant") || strings.Contains(merchant, "food"):
		return []string{"Local Restaurant", "Fast Food Chain", "Delivery Service"}
	default:
		return []string{}
	}
}
