package claim

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Filter constrains claim list queries. Zero values mean "no constraint".
// CreatedTo is inclusive through the end of the given day.
type Filter struct {
	Status       Status
	Kind         Kind
	ArbitratorID string
	Search       string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Page         int
	PageSize     int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (f Filter) validate() error {
	if f.Status != "" && !validStatus(f.Status) {
		return fmt.Errorf("%w: unknown status filter %q", ErrInvalidInput, f.Status)
	}
	switch f.Kind {
	case "", KindRefund, KindDispute, KindConflict:
	default:
		return fmt.Errorf("%w: unknown kind filter %q", ErrInvalidInput, f.Kind)
	}
	return nil
}

// normalized returns the filter with pagination defaults applied: pages are
// 1-indexed, page size capped at maxPageSize.
func (f Filter) normalized() Filter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > maxPageSize {
		f.PageSize = defaultPageSize
	}
	return f
}

// Matches reports whether the claim satisfies every constraint of the
// filter. It is the single matching rule: the in-memory store applies it
// directly and the Postgres store mirrors it in SQL.
func (f Filter) Matches(c Claim) bool {
	if f.Status != "" && DeriveStatus(c) != f.Status {
		return false
	}
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.ArbitratorID != "" && c.ArbitratorID != f.ArbitratorID {
		return false
	}
	if f.CreatedFrom != nil && c.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !c.CreatedAt.Before(endOfDay(*f.CreatedTo)) {
		return false
	}
	if s := strings.TrimSpace(f.Search); s != "" && !matchesSearch(c, s) {
		return false
	}
	return true
}

// matchesSearch is a case-insensitive substring match over the fields the
// console search box covers: claim id, participant names and emails, and
// the order title.
func matchesSearch(c Claim, term string) bool {
	term = strings.ToLower(term)
	for _, field := range []string{
		c.ID,
		c.Client.Name, c.Client.Email,
		c.Expert.Name, c.Expert.Email,
		c.Order.Title,
	} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

// ApplyFilter runs the full read-side pipeline over an in-memory claim
// collection: match, sort by creation time descending, paginate. The
// returned total reflects the filtered set, not the whole collection.
func ApplyFilter(claims []Claim, f Filter) ([]Claim, int) {
	f = f.normalized()

	matched := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if f.Matches(c) {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return []Claim{}, total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total
}
