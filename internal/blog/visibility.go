package blog

import (
	"sort"
	"time"
)

// Visible reports whether a post passes the three-part publication predicate
// at the given instant: the post is published, its category (if any) is
// published, and its pub date is not in the future. Authors bypass this
// predicate entirely; see VisibleTo.
func Visible(p *Post, now time.Time) bool {
	if !p.IsPublished {
		return false
	}
	if p.Category != nil && !p.Category.IsPublished {
		return false
	}
	return !p.PubDate.After(now)
}

// VisibleTo reports whether viewer may see the post. The author always sees
// their own posts, drafts and scheduled ones included.
func VisibleTo(p *Post, viewer *User, now time.Time) bool {
	if viewer != nil && viewer.ID == p.AuthorID {
		return true
	}
	return Visible(p, now)
}

// FilterVisible returns the subset of posts the viewer may see, ordered by
// pub date descending. When ownerContext is true (the viewer is browsing
// their own profile) the input passes through unfiltered. The input slice is
// not modified; empty input yields empty output.
func FilterVisible(posts []*Post, viewer *User, ownerContext bool, now time.Time) []*Post {
	out := make([]*Post, 0, len(posts))
	for _, p := range posts {
		if ownerContext || VisibleTo(p, viewer, now) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PubDate.After(out[j].PubDate)
	})
	return out
}
