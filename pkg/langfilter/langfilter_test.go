package langfilter

import (
	"testing"

	"mentionscan/pkg/domain"
)

func titles(ms []domain.Mention) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Title
	}
	return out
}

func TestFilter(t *testing.T) {
	in := []domain.Mention{
		{Title: "The company announced record profits for the third quarter this year"},
		{Title: "La empresa anunció beneficios récord para el tercer trimestre de este año"},
		{Title: "Acme Q3"},
	}
	out := Filter(in, []string{"en"})
	if len(out) != 2 {
		t.Fatalf("kept %v, want english title and short title", titles(out))
	}
	if out[0].Title != in[0].Title {
		t.Errorf("first survivor = %q", out[0].Title)
	}
	if out[1].Title != "Acme Q3" {
		t.Errorf("short title dropped, survivors %v", titles(out))
	}
}

func TestFilterEmptyAllowedListKeepsAll(t *testing.T) {
	in := []domain.Mention{
		{Title: "La empresa anunció beneficios récord para el tercer trimestre"},
	}
	if out := Filter(in, nil); len(out) != 1 {
		t.Fatalf("kept %d, want 1 with no language restriction", len(out))
	}
}

func TestFilterMultipleLanguages(t *testing.T) {
	in := []domain.Mention{
		{Title: "The company announced record profits for the third quarter this year"},
		{Title: "La empresa anunció beneficios récord para el tercer trimestre de este año"},
	}
	if out := Filter(in, []string{"en", "es"}); len(out) != 2 {
		t.Fatalf("kept %d, want 2", len(out))
	}
}
