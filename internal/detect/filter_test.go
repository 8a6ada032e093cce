package detect

import (
	"slices"
	"testing"

	"github.com/MrWong99/inkvision/pkg/types"
)

var landmarks = NewLabels("Eiffel Tower", "Colosseum", "Taj Mahal")

func cands(pairs ...any) []types.Candidate {
	out := make([]types.Candidate, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, types.Candidate{Label: pairs[i].(string), Confidence: pairs[i+1].(float64)})
	}
	return out
}

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      []types.Candidate
		playing bool
		want    Result
		reject  Reject
	}{
		{"empty", nil, false, None(), RejectEmpty},
		{"single above start", cands("Eiffel Tower", 0.90), false, Some("Eiffel Tower"), Accepted},
		{"single at start threshold", cands("Eiffel Tower", 0.85), false, Some("Eiffel Tower"), Accepted},
		{"single below start", cands("Eiffel Tower", 0.80), false, None(), RejectEmpty},
		{"below start but above keep while playing", cands("Eiffel Tower", 0.80), true, Some("Eiffel Tower"), Accepted},
		{"below keep while playing", cands("Eiffel Tower", 0.70), true, None(), RejectEmpty},
		{"unmapped top", cands("Big Ben", 0.99, "Colosseum", 0.10), false, None(), RejectUnmapped},
		{"unmapped top hides mapped runner-up", cands("Big Ben", 0.99, "Colosseum", 0.90), false, None(), RejectUnmapped},
		{"ambiguous when not playing", cands("Eiffel Tower", 0.90, "Colosseum", 0.87), false, None(), RejectAmbiguous},
		{"clear margin when not playing", cands("Eiffel Tower", 0.90, "Colosseum", 0.80), false, Some("Eiffel Tower"), Accepted},
		{"candidates below threshold do not count", cands("Eiffel Tower", 0.90, "Colosseum", 0.88, "Taj Mahal", 0.2), true, None(), RejectAmbiguous},
		{"keep gap is narrower", cands("Colosseum", 0.90, "Taj Mahal", 0.86), true, Some("Colosseum"), Accepted},
		{"unsorted input", cands("Colosseum", 0.5, "Taj Mahal", 0.95), false, Some("Taj Mahal"), Accepted},
		{"tie keeps input order", cands("Colosseum", 0.875, "Taj Mahal", 0.875), false, None(), RejectAmbiguous},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, reject, _ := Explain(tc.in, tc.playing, landmarks, DefaultThresholds())
			if got != tc.want {
				t.Errorf("Explain() result = %v, want %v", got, tc.want)
			}
			if reject != tc.reject {
				t.Errorf("Explain() reject = %v, want %v", reject, tc.reject)
			}
			if f := Filter(tc.in, tc.playing, landmarks, DefaultThresholds()); f != got {
				t.Errorf("Filter() = %v, Explain() = %v", f, got)
			}
		})
	}
}

func TestFilter_TieBreakPreservesInputOrder(t *testing.T) {
	t.Parallel()

	in := cands("Colosseum", 0.875, "Big Ben", 0.875)
	_, reject, top := Explain(in, false, landmarks, Thresholds{Start: 0.5, StartGap: -1})
	if reject != Accepted {
		t.Fatalf("reject = %v, want accepted", reject)
	}
	if top.Label != "Colosseum" {
		t.Errorf("top = %q, want first of the tied candidates", top.Label)
	}
}

func TestFilter_IsPure(t *testing.T) {
	t.Parallel()

	in := cands("Colosseum", 0.5, "Taj Mahal", 0.95, "Eiffel Tower", 0.91)
	orig := slices.Clone(in)

	first := Filter(in, false, landmarks, DefaultThresholds())
	for range 10 {
		if got := Filter(in, false, landmarks, DefaultThresholds()); got != first {
			t.Fatalf("Filter() = %v on repeat, first call gave %v", got, first)
		}
	}
	if !slices.Equal(in, orig) {
		t.Errorf("Filter modified its input: %v, want %v", in, orig)
	}
}

func TestFilter_NilLabelSet(t *testing.T) {
	t.Parallel()

	if got := Filter(cands("Colosseum", 0.99), false, nil, DefaultThresholds()); got.OK {
		t.Errorf("Filter() with no known labels = %v, want None", got)
	}
}
