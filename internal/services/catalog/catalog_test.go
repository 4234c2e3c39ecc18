package catalog

import "testing"

func TestCategoriesReturnsCopy(t *testing.T) {
	t.Parallel()

	first := Categories()
	if len(first) != 10 || first[0].ID != AllID {
		t.Fatalf("unexpected catalog: %+v", first)
	}
	first[1].Name = "changed"
	if Categories()[1].Name != "Electronics" {
		t.Fatal("catalog mutated through returned slice")
	}
}

func TestFilterName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"all":         "",
		"Electronics": "Electronics",
		" furniture ": "Furniture",
		"Garden":      "Garden",
	}
	for in, want := range tests {
		if got := FilterName(in); got != want {
			t.Fatalf("FilterName(%q) = %q, want %q", in, got, want)
		}
	}
}
