package repository

import "github.com/bumbayash/blogicum/internal/blog"

// SeedFixtures loads a handful of categories and locations into a memory
// store so a fresh dev server has something to browse. Posts and users come
// from the API.
func SeedFixtures(s *MemoryStore) {
	categories := []*blog.Category{
		{Title: "Travel", Description: "Trips and places", Slug: "travel", IsPublished: true},
		{Title: "Food", Description: "Recipes and restaurants", Slug: "food", IsPublished: true},
		{Title: "Drafts Corner", Description: "Unpublished experiments", Slug: "drafts-corner", IsPublished: false},
	}
	for _, c := range categories {
		s.AddCategory(c)
	}

	locations := []*blog.Location{
		{Name: "Lisbon", IsPublished: true},
		{Name: "Tbilisi", IsPublished: true},
		{Name: "Nowhere", IsPublished: false},
	}
	for _, l := range locations {
		s.AddLocation(l)
	}
}
