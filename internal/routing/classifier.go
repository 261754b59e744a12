// Package routing decides which backend answers a question. Classification is
// pure text analysis so it stays deterministic and cannot be taken down by the
// same outages it routes around.
package routing

import "strings"

type Route int

const (
	RouteData Route = iota
	RouteKnowledge
)

func (r Route) String() string {
	if r == RouteData {
		return "data"
	}
	return "knowledge"
}

type Category string

const (
	CategoryPromotion Category = "promotion"
	CategoryInventory Category = "inventory"
	CategoryPrice     Category = "price"
	CategoryOrder     Category = "order"
	CategoryProduct   Category = "product"
	CategoryGeneric   Category = "generic"
)

// Decision is produced per request and never persisted. Category is meaningful
// only when Route is RouteData.
type Decision struct {
	Route    Route
	Category Category
}

// Short transactional questions ("is there any X left?") are overwhelmingly
// data questions but rarely contain an explicit domain keyword.
const shortQuestionTokenLimit = 10

var leadMarkers = []string{
	"is there",
	"are there",
	"any left",
	"still have",
	"do you have",
	"in stock",
	"sell",
	"price",
	"how much",
}

var dataKeywords = []string{
	"sales", "revenue", "profit",
	"inventory", "stock", "warehouse", "remaining", "available", "availability",
	"price", "pricing", "cost",
	"order", "orders", "purchase", "delivery", "return",
	"promotion", "promo", "discount", "deal", "offer", "voucher", "coupon", "gift",
	"quantity", "how many", "how much", "count", "total",
	"statistics", "report", "analysis", "best seller",
	"product", "products", "item", "items", "customer", "customers",
	"barcode", "unit", "units", "category", "categories",
}

// Category vocabularies overlap (discount terms appear for both promotions and
// prices), so detection runs in a fixed priority order and the first match wins.
var categoryOrder = []struct {
	category Category
	keywords []string
}{
	{CategoryPromotion, []string{"promotion", "promo", "discount", "deal", "offer", "voucher", "coupon", "gift"}},
	{CategoryInventory, []string{"inventory", "stock", "warehouse", "in stock", "any left", "remaining", "still have", "available", "availability"}},
	{CategoryPrice, []string{"price", "pricing", "cost", "how much"}},
	{CategoryOrder, []string{"order", "orders", "purchase", "delivery", "return", "shipping"}},
	{CategoryProduct, []string{"product", "products", "item", "items", "barcode", "unit", "units", "category", "categories", "sell", "brand"}},
}

// Classify routes a question. It never fails and performs no I/O.
func Classify(question string) Decision {
	q := strings.ToLower(strings.TrimSpace(question))

	if isShortDataQuestion(q) || containsAny(q, dataKeywords) {
		return Decision{Route: RouteData, Category: detectCategory(q)}
	}
	return Decision{Route: RouteKnowledge, Category: CategoryGeneric}
}

func isShortDataQuestion(q string) bool {
	if len(strings.Fields(q)) > shortQuestionTokenLimit {
		return false
	}
	return containsAny(q, leadMarkers)
}

func detectCategory(q string) Category {
	for _, c := range categoryOrder {
		if containsAny(q, c.keywords) {
			return c.category
		}
	}
	return CategoryGeneric
}

func containsAny(q string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}
