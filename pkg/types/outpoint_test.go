package types

import (
	"strings"
	"testing"
)

func TestOutPoint_IsZero(t *testing.T) {
	var zero OutPoint
	if !zero.IsZero() {
		t.Error("zero-value OutPoint should be zero")
	}

	// Non-zero hash
	nonZero := OutPoint{TxHash: Hash{0x01}, Index: 0}
	if nonZero.IsZero() {
		t.Error("OutPoint with non-zero TxHash should not be zero")
	}

	// Non-zero index
	nonZero2 := OutPoint{TxHash: Hash{}, Index: 1}
	if nonZero2.IsZero() {
		t.Error("OutPoint with non-zero Index should not be zero")
	}
}

func TestOutPoint_String(t *testing.T) {
	o := OutPoint{
		TxHash: Hash{0xab},
		Index:  3,
	}
	s := o.String()

	// Should contain the tx hash hex and :index
	if !strings.HasPrefix(s, "ab") {
		t.Errorf("String() should start with tx hash hex, got %s", s)
	}
	if !strings.HasSuffix(s, ":3") {
		t.Errorf("String() should end with ':3', got %s", s)
	}

	// Zero outpoint
	var zero OutPoint
	zs := zero.String()
	if !strings.HasSuffix(zs, ":0") {
		t.Errorf("zero OutPoint String() should end with ':0', got %s", zs)
	}
}
