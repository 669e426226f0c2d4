// Package shoppinglist turns the ingredient lines of every recipe in a
// user's shopping cart into a plain-text report.
//
// The package is pure: the store hands over raw model.CartLine rows and this
// package does the grouping, summing, sorting and rendering. Keeping it free
// of I/O means the report is easy to test and always byte-identical for the
// same cart contents.
//
//	CartLines (sqlite) → Build → List → Render → text/plain attachment
package shoppinglist

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/foodgram/internal/model"
)

// ErrEmptyCart is returned by Build when there is nothing to buy.
var ErrEmptyCart = errors.New("shoppinglist: shopping cart is empty")

// DateLayout is the dd.mm.YYYY date printed in the report header.
const DateLayout = "02.01.2006"

// Item is one aggregated product: every amount of the same
// (name, unit) pair summed across the cart.
type Item struct {
	Name            string
	MeasurementUnit string
	Total           int
}

// List is the aggregated cart, already in report order.
type List struct {
	Items   []Item
	Recipes []string
}

type groupKey struct {
	name string
	unit string
}

// Build groups lines by (ingredient name, measurement unit), sums the amounts
// and collects the distinct recipe names.
//
// Items are sorted by name then unit, recipes by name. Names compare
// case-insensitively, as the report prints them capitalized; the raw name
// breaks ties. Sorting is by the visible strings, never by database id, so
// two carts with the same content produce the same List.
func Build(lines []model.CartLine) (*List, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	totals := make(map[groupKey]int)
	recipes := make(map[string]struct{})
	for _, l := range lines {
		totals[groupKey{name: l.IngredientName, unit: l.MeasurementUnit}] += l.Amount
		recipes[l.RecipeName] = struct{}{}
	}

	list := &List{
		Items:   make([]Item, 0, len(totals)),
		Recipes: make([]string, 0, len(recipes)),
	}
	for k, total := range totals {
		list.Items = append(list.Items, Item{Name: k.name, MeasurementUnit: k.unit, Total: total})
	}
	sort.Slice(list.Items, func(i, j int) bool {
		a, b := list.Items[i], list.Items[j]
		if c := compareNames(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.MeasurementUnit < b.MeasurementUnit
	})

	for name := range recipes {
		list.Recipes = append(list.Recipes, name)
	}
	sort.Slice(list.Recipes, func(i, j int) bool {
		return compareNames(list.Recipes[i], list.Recipes[j]) < 0
	})

	return list, nil
}

// Render writes the report. The date is passed in so callers (and tests)
// control the header.
//
//	Shopping list for 17.10.2026:
//	Products:
//	1. Flour (g) - 350
//
//	Recipes that need these products:
//	1. Bread
func (l *List) Render(date time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Shopping list for %s:\n", date.Format(DateLayout))
	b.WriteString("Products:\n")
	for i, item := range l.Items {
		fmt.Fprintf(&b, "%d. %s (%s) - %d\n", i+1, capitalize(item.Name), item.MeasurementUnit, item.Total)
	}

	b.WriteString("\nRecipes that need these products:\n")
	for i, name := range l.Recipes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}

	return b.String()
}

// compareNames orders case-insensitively, then by the raw string.
func compareNames(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
