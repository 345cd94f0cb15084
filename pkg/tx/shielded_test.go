package tx

import "testing"

func TestPoolActivity_IsEmpty(t *testing.T) {
	var empty PoolActivity
	if !empty.IsEmpty() {
		t.Error("zero-value PoolActivity should be empty")
	}

	withNote := PoolActivity{Notes: []Note{{0x01}}}
	if withNote.IsEmpty() {
		t.Error("PoolActivity with a note should not be empty")
	}

	withNullifier := PoolActivity{Nullifiers: []Nullifier{{0x01}}}
	if withNullifier.IsEmpty() {
		t.Error("PoolActivity with a nullifier should not be empty")
	}

	withDelta := PoolActivity{ValueDelta: 5}
	if withDelta.IsEmpty() {
		t.Error("PoolActivity with a non-zero value delta should not be empty")
	}
}

func TestShieldedData_ValueBalance(t *testing.T) {
	var nilData *ShieldedData
	if got := nilData.ValueBalance(); got.Sprout != 0 || got.Sapling != 0 || got.Orchard != 0 {
		t.Errorf("nil ShieldedData.ValueBalance() = %+v, want zero", got)
	}

	s := &ShieldedData{
		Sprout:  PoolActivity{ValueDelta: 10},
		Sapling: PoolActivity{ValueDelta: -5},
		Orchard: PoolActivity{ValueDelta: 3},
	}
	got := s.ValueBalance()
	if got.Sprout != 10 || got.Sapling != -5 || got.Orchard != 3 || got.Transparent != 0 {
		t.Errorf("ValueBalance() = %+v, want {0 10 -5 3}", got)
	}
}
