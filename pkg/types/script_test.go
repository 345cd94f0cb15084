package types

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestScriptType_String(t *testing.T) {
	tests := []struct {
		st   ScriptType
		want string
	}{
		{ScriptTypeP2PKH, "P2PKH"},
		{ScriptTypeP2SH, "P2SH"},
		{ScriptType(0xFF), "Unknown"},
		{ScriptType(0x00), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.st.String(); got != tt.want {
				t.Errorf("ScriptType(%#x).String() = %q, want %q", uint8(tt.st), got, tt.want)
			}
		})
	}
}

func TestScriptType_Values(t *testing.T) {
	// Verify the actual byte values are correct (these are protocol constants)
	if ScriptTypeP2PKH != 0x01 {
		t.Errorf("P2PKH = %#x, want 0x01", uint8(ScriptTypeP2PKH))
	}
	if ScriptTypeP2SH != 0x02 {
		t.Errorf("P2SH = %#x, want 0x02", uint8(ScriptTypeP2SH))
	}
}

func TestScript_JSON_RoundTrip(t *testing.T) {
	s := Script{
		Type: ScriptTypeP2PKH,
		Data: []byte{0xde, 0xad, 0xbe, 0xef},
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Script
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !reflect.DeepEqual(s, decoded) {
		t.Errorf("roundtrip mismatch: original=%+v, decoded=%+v", s, decoded)
	}
}

func TestScript_JSON_EmptyData(t *testing.T) {
	s := Script{Type: ScriptTypeP2SH}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Script
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Type != ScriptTypeP2SH || len(decoded.Data) != 0 {
		t.Errorf("unexpected decoded script: %+v", decoded)
	}
}
