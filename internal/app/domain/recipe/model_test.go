package recipe

import "testing"

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Dinner", "vegan", "dinner", "", "Quick "})
	want := []string{"dinner", "quick", "vegan"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if tags := NormalizeTags(nil); tags == nil || len(tags) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", tags)
	}
}

func TestSortIngredients(t *testing.T) {
	items := []Ingredient{{ID: "c", Position: 2}, {ID: "b", Position: 0}, {ID: "a", Position: 0}}
	SortIngredients(items)
	if items[0].ID != "a" || items[1].ID != "b" || items[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", items)
	}
}
