package types

import "testing"

func TestValueBalance_IsZero(t *testing.T) {
	var zero ValueBalance
	if !zero.IsZero() {
		t.Error("zero-value ValueBalance should be zero")
	}

	nonZero := ValueBalance{Transparent: 1}
	if nonZero.IsZero() {
		t.Error("non-zero ValueBalance should not be zero")
	}
}

func TestValueBalance_IsNonNegative(t *testing.T) {
	tests := []struct {
		name string
		v    ValueBalance
		want bool
	}{
		{"all zero", ValueBalance{}, true},
		{"all positive", ValueBalance{1, 2, 3, 4}, true},
		{"transparent negative", ValueBalance{Transparent: -1}, false},
		{"sprout negative", ValueBalance{Sprout: -1}, false},
		{"sapling negative", ValueBalance{Sapling: -1}, false},
		{"orchard negative", ValueBalance{Orchard: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsNonNegative(); got != tt.want {
				t.Errorf("IsNonNegative() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueBalance_Add(t *testing.T) {
	a := ValueBalance{Transparent: 10, Sprout: 5, Sapling: 3, Orchard: 1}
	b := ValueBalance{Transparent: -4, Sprout: 2, Sapling: 0, Orchard: 1}

	got := a.Add(b)
	want := ValueBalance{Transparent: 6, Sprout: 7, Sapling: 3, Orchard: 2}

	if got != want {
		t.Errorf("Add() = %+v, want %+v", got, want)
	}
}
