package sparse

import "testing"

func TestBuilder_Build_DeterministicOrder(t *testing.T) {
	b := NewBuilder()
	v1 := b.Build("func getUserByID(id int) { return nil }")
	v2 := b.Build("func getUserByID(id int) { return nil }")

	if len(v1.Indices) == 0 {
		t.Fatal("expected a non-empty sparse vector")
	}
	if len(v1.Indices) != len(v2.Indices) {
		t.Fatalf("expected deterministic vector size, got %d vs %d", len(v1.Indices), len(v2.Indices))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] || v1.Values[i] != v2.Values[i] {
			t.Fatalf("expected identical vectors, diverged at %d", i)
		}
	}
}

func TestBuilder_Build_IndicesAreSorted(t *testing.T) {
	b := NewBuilder()
	v := b.Build("the quick brown fox jumps over the lazy dog repeatedly and the fox runs")

	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i] <= v.Indices[i-1] {
			t.Fatalf("expected strictly increasing indices, got %v", v.Indices)
		}
	}
}

func TestBuilder_Build_RepeatedTermsWeightHigher(t *testing.T) {
	b := NewBuilder()
	single := b.Build("connection")
	repeated := b.Build("connection connection connection connection")

	if len(single.Values) != 1 || len(repeated.Values) != 1 {
		t.Fatalf("expected a single stemmed term in both vectors, got %v and %v", single.Indices, repeated.Indices)
	}
	if repeated.Values[0] <= single.Values[0] {
		t.Fatalf("expected repeated term to weight higher: %f vs %f", repeated.Values[0], single.Values[0])
	}
}

func TestBuilder_Build_CamelCaseSplitsIntoSubwords(t *testing.T) {
	b := NewBuilder()
	v := b.Build("parseHTTPRequest")
	if len(v.Indices) < 2 {
		t.Fatalf("expected camelCase identifier to split into multiple terms, got %d", len(v.Indices))
	}
}

func TestBuilder_Build_EmptyContent(t *testing.T) {
	b := NewBuilder()
	v := b.Build("")
	if len(v.Indices) != 0 {
		t.Fatalf("expected empty vector for empty content, got %d terms", len(v.Indices))
	}
}

func TestBuilder_Build_StopWordsAreDropped(t *testing.T) {
	b := NewBuilder()
	v := b.Build("the a an of and")
	if len(v.Indices) != 0 {
		t.Fatalf("expected pure stopword content to produce an empty vector, got %d terms", len(v.Indices))
	}
}
