package answer

import (
	"regexp"
	"sort"
	"strings"
)

// headingRule maps an English section label to its Indonesian heading.
type headingRule struct {
	Label   string
	Heading string
}

// headingRules lists the section labels recognised at the start of a line.
var headingRules = []headingRule{
	{Label: "Ingredients", Heading: "Bahan-bahan"},
	{Label: "Ingredient", Heading: "Bahan-bahan"},
	{Label: "Directions", Heading: "Cara Memasak"},
	{Label: "Steps", Heading: "Cara Memasak"},
	{Label: "Step", Heading: "Cara Memasak"},
	{Label: "Nutrition Facts", Heading: "Informasi Nutrisi"},
	{Label: "Prep Time", Heading: "Waktu Persiapan"},
	{Label: "Cook Time", Heading: "Waktu Memasak"},
	{Label: "Servings", Heading: "Porsi"},
}

// headingSeparators may follow a label; they and the rest of the line are dropped.
const headingSeparators = ":-"

// wordDelimiters end a word in addition to whitespace.
const wordDelimiters = ".,;:!?-"

var (
	headingTable   = buildHeadingTable(headingRules)
	headingPattern = buildHeadingPattern(headingRules)
	multiSpace     = regexp.MustCompile(` {2,}`)
)

func buildHeadingTable(rules []headingRule) map[string]string {
	table := make(map[string]string, len(rules))
	for _, r := range rules {
		table[foldKey(r.Label)] = r.Heading
	}
	return table
}

// buildHeadingPattern orders the alternation longest label first so that
// "Ingredients" wins over "Ingredient".
func buildHeadingPattern(rules []headingRule) *regexp.Regexp {
	labels := make([]string, 0, len(rules))
	for _, r := range rules {
		labels = append(labels, regexp.QuoteMeta(r.Label))
	}
	sort.SliceStable(labels, func(i, j int) bool {
		return len(labels[i]) > len(labels[j])
	})
	return regexp.MustCompile(`(?i)^(?:` + strings.Join(labels, "|") + `)`)
}
