package inference

import (
	"context"
	"math"
	"reflect"
	"testing"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder()
	ctx := context.Background()
	a, err := e.Embed(ctx, "a dog runs through the park")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, "a dog runs through the park")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same text produced different vectors")
	}
	if len(a) != e.Dim() {
		t.Fatalf("len = %d, want %d", len(a), e.Dim())
	}
}

func TestLocalEmbedderNormalized(t *testing.T) {
	e := NewLocalEmbedder()
	vec, err := e.Embed(context.Background(), "sunset over the harbor with sailing boats")
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", math.Sqrt(sum))
	}
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	e := NewLocalEmbedder()
	vec, err := e.Embed(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("empty text: vec[%d] = %v, want all zeros", i, v)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The dog, and THE cat! 他们 run-fast")
	want := []string{"dog", "cat", "他们", "run", "fast"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}
