package claim

import (
	"testing"
	"time"
)

func queryFixture() []Claim {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	taken := base.Add(time.Hour)

	return []Claim{
		{
			ID:        "claim-1001",
			Kind:      KindRefund,
			Client:    Participant{ID: "c1", Name: "Marina Petrova", Email: "marina@example.com"},
			Expert:    Participant{ID: "e1", Name: "Oleg Writer", Email: "oleg@example.com"},
			Order:     OrderRef{ID: "o1", Title: "History term paper", Amount: 15000},
			CreatedAt: base,
		},
		{
			ID:           "claim-1002",
			Kind:         KindDispute,
			ArbitratorID: "arb-1",
			TakenAt:      &taken,
			Client:       Participant{ID: "c2", Name: "Ivan Sokolov", Email: "ivan@example.com"},
			Expert:       Participant{ID: "e2", Name: "Anna Editor", Email: "anna@example.com"},
			Order:        OrderRef{ID: "o2", Title: "Marketing essay", Amount: 8000},
			CreatedAt:    base.AddDate(0, 0, 1),
		},
		{
			ID:           "claim-1003",
			Kind:         KindRefund,
			ArbitratorID: "arb-1",
			TakenAt:      &taken,
			Decision:     &Decision{Type: DecisionNoRefund, Reasoning: "Order fulfilled per the brief"},
			Client:       Participant{ID: "c3", Name: "Pavel Orlov", Email: "pavel@example.com"},
			Expert:       Participant{ID: "e3", Name: "Oleg Writer", Email: "oleg@example.com"},
			Order:        OrderRef{ID: "o3", Title: "Chemistry lab report", Amount: 5000},
			CreatedAt:    base.AddDate(0, 0, 2),
		},
	}
}

func TestApplyFilter_StatusBuckets(t *testing.T) {
	claims := queryFixture()

	items, total := ApplyFilter(claims, Filter{Status: StatusNew})
	if total != 1 || len(items) != 1 || items[0].ID != "claim-1001" {
		t.Fatalf("new bucket: expected claim-1001 only, got total=%d items=%v", total, ids(items))
	}

	items, total = ApplyFilter(claims, Filter{Status: StatusInProgress})
	if total != 1 || items[0].ID != "claim-1002" {
		t.Fatalf("in_progress bucket: expected claim-1002, got total=%d items=%v", total, ids(items))
	}

	items, total = ApplyFilter(claims, Filter{Status: StatusCompleted})
	if total != 1 || items[0].ID != "claim-1003" {
		t.Fatalf("completed bucket: expected claim-1003, got total=%d items=%v", total, ids(items))
	}
}

func TestApplyFilter_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	claims := queryFixture()

	// Matches both claims where Oleg Writer is the expert.
	items, total := ApplyFilter(claims, Filter{Search: "oleg"})
	if total != 2 {
		t.Fatalf("expected 2 matches for %q, got %d (%v)", "oleg", total, ids(items))
	}

	items, total = ApplyFilter(claims, Filter{Search: "MARKETING"})
	if total != 1 || items[0].ID != "claim-1002" {
		t.Fatalf("expected order-title match for claim-1002, got total=%d items=%v", total, ids(items))
	}

	if _, total = ApplyFilter(claims, Filter{Search: "claim-1001"}); total != 1 {
		t.Fatalf("expected id search to match exactly one claim, got %d", total)
	}
}

func TestApplyFilter_DateRangeEndOfDayInclusive(t *testing.T) {
	claims := queryFixture()

	from := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	// claim-1002 was created at 12:00 on March 11: an end date of March 11
	// must still include it.
	items, total := ApplyFilter(claims, Filter{CreatedFrom: &from, CreatedTo: &to})
	if total != 1 || items[0].ID != "claim-1002" {
		t.Fatalf("expected end-of-day inclusive range to match claim-1002, got total=%d items=%v", total, ids(items))
	}
}

func TestApplyFilter_PaginationAndOrdering(t *testing.T) {
	claims := queryFixture()

	items, total := ApplyFilter(claims, Filter{Page: 1, PageSize: 2})
	if total != 3 {
		t.Fatalf("expected filtered total 3, got %d", total)
	}
	if len(items) != 2 || items[0].ID != "claim-1003" || items[1].ID != "claim-1002" {
		t.Fatalf("expected newest-first first page, got %v", ids(items))
	}

	items, total = ApplyFilter(claims, Filter{Page: 2, PageSize: 2})
	if total != 3 || len(items) != 1 || items[0].ID != "claim-1001" {
		t.Fatalf("expected second page with claim-1001, got total=%d items=%v", total, ids(items))
	}

	// Pages past the end are empty but keep the filtered total.
	items, total = ApplyFilter(claims, Filter{Page: 5, PageSize: 2})
	if total != 3 || len(items) != 0 {
		t.Fatalf("expected empty page with total 3, got total=%d items=%v", total, ids(items))
	}
}

func TestApplyFilter_TotalReflectsFilteredSet(t *testing.T) {
	claims := queryFixture()

	_, total := ApplyFilter(claims, Filter{Kind: KindRefund, Page: 1, PageSize: 1})
	if total != 2 {
		t.Fatalf("expected filtered total 2 regardless of page size, got %d", total)
	}
}

func ids(claims []Claim) []string {
	out := make([]string, 0, len(claims))
	for _, c := range claims {
		out = append(out, c.ID)
	}
	return out
}
