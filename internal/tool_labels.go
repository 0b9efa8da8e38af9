package internal

import (
	"strings"
	"unicode"
)

// toolLabels maps raw tool names reported by the assistant backend to the
// labels shown on tool indicators.
var toolLabels = map[string]string{
	"search_chefs":               "Searching chefs",
	"find_local_chefs":           "Finding chefs near you",
	"get_chef_details":           "Reading chef profile",
	"get_chef_menu":              "Checking the menu",
	"list_chef_services":         "Looking up chef services",
	"get_service_tiers":          "Comparing service tiers",
	"check_chef_availability":    "Checking availability",
	"get_meal_details":           "Reading meal details",
	"search_dishes":              "Searching dishes",
	"search_ingredients":         "Checking ingredients",
	"get_dietary_preferences":    "Reviewing dietary preferences",
	"update_dietary_preferences": "Updating dietary preferences",
	"get_meal_plan":              "Loading your meal plan",
	"create_meal_plan":           "Drafting a meal plan",
	"get_order_history":          "Reviewing past orders",
	"add_to_cart":                "Adding to cart",
	"get_cart":                   "Checking your cart",
	"web_search":                 "Searching the web",
	"file_search":                "Searching documents",
}

// ToolLabel returns the display label for a raw tool name. Unknown names are
// humanized: underscores become spaces and each word is capitalized.
func ToolLabel(raw string) string {
	if label, ok := toolLabels[raw]; ok {
		return label
	}
	return humanizeToolName(raw)
}

func humanizeToolName(raw string) string {
	words := strings.Fields(strings.ReplaceAll(raw, "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
