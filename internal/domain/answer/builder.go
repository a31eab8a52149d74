package answer

import (
	"fmt"
	"strings"
)

const (
	ingredientsHeading  = "### 🛒 Bahan-bahan"
	instructionsHeading = "### 🍳 Cara Memasak"
)

// BuildStructured renders explicit ingredient and instruction lists as a
// Markdown document. Items are inserted verbatim.
func BuildStructured(ingredients, instructions []string) string {
	var b strings.Builder

	b.WriteString(ingredientsHeading)
	b.WriteByte('\n')
	for _, ing := range ingredients {
		fmt.Fprintf(&b, "- %s\n", ing)
	}

	b.WriteByte('\n')
	b.WriteString(instructionsHeading)
	b.WriteByte('\n')
	for i, ins := range instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ins)
	}

	return strings.TrimRight(b.String(), "\n")
}
