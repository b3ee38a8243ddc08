package permissions

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Display names are Japanese; the key ordering the database gives us is not
// what operators expect to read. Collate by name with key as tiebreaker.
// Collators are stateful, so each sort builds its own.
var displayLanguage = language.Japanese

// SortRoles orders roles by collated display name.
func SortRoles(roles []Role) {
	collator := collate.New(displayLanguage)
	sort.SliceStable(roles, func(i, j int) bool {
		if c := collator.CompareString(roles[i].Name, roles[j].Name); c != 0 {
			return c < 0
		}
		return roles[i].Key < roles[j].Key
	})
}

// SortPages orders pages by collated display name.
func SortPages(pages []Page) {
	collator := collate.New(displayLanguage)
	sort.SliceStable(pages, func(i, j int) bool {
		if c := collator.CompareString(pages[i].Name, pages[j].Name); c != 0 {
			return c < 0
		}
		return pages[i].Key < pages[j].Key
	})
}
