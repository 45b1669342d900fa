package mock

import (
	"context"
	"math"
	"reflect"
	"testing"
)

func TestEmbed_Deterministic(t *testing.T) {
	e := New()

	a, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("same text produced different embeddings")
	}
	if len(a) != DefaultDimensions {
		t.Errorf("dimensions = %d, want %d", len(a), DefaultDimensions)
	}
}

func TestEmbed_DistinctTextsDiffer(t *testing.T) {
	e := NewWithDimensions(8)

	a, _ := e.Embed(context.Background(), "one")
	b, _ := e.Embed(context.Background(), "two")
	if reflect.DeepEqual(a, b) {
		t.Error("distinct texts hashed to the same embedding")
	}
}

func TestEmbed_UnitVector(t *testing.T) {
	e := NewWithDimensions(16)

	vec, _ := e.Embed(context.Background(), "normalize me")
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", math.Sqrt(norm))
	}
}
