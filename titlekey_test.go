package ctrcia

import (
	"encoding/hex"
	"testing"

	"github.com/hax0kartik/ctrcia/ctrutil"
)

func TestGenerateKeyVectors(t *testing.T) {
	tests := []struct {
		titleID  string
		password string
		want     string
	}{
		{"0004008c0f70cd00", "", "09bda5c9c39779725d5ede693e15829b"},
		{"0x00040000001adc00", "mypass", "3dbe05484b3c5033c2cefd81e27b0d95"},
		{"000400000008c000", "", "85d5e3ffdc6e24f7881fa4acd3d7e38d"},
	}

	for _, tt := range tests {
		got, err := GenerateKey(tt.titleID, tt.password)
		if err != nil {
			t.Fatalf("GenerateKey(%q, %q): %v", tt.titleID, tt.password, err)
		}
		if hex.EncodeToString(got[:]) != tt.want {
			t.Errorf("GenerateKey(%q, %q) = %x, want %s", tt.titleID, tt.password, got, tt.want)
		}
	}
}

func TestGenerateKeyRejectsShortTitleID(t *testing.T) {
	if _, err := GenerateKey("0x0", ""); err == nil {
		t.Error("expected an error for a too-short title id")
	}
}

func TestEncryptTitleKeyVector(t *testing.T) {
	keys := &StaticKeyProvider{} // CommonKeys defaults to all-zero

	plain, err := GenerateKey("0004008c0f70cd00", "")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	got, err := EncryptTitleKey(keys, "0004008c0f70cd00", plain)
	if err != nil {
		t.Fatalf("EncryptTitleKey: %v", err)
	}

	want := "24079d90329b1e82f2247e8ba999244c"
	if hex.EncodeToString(got[:]) != want {
		t.Errorf("EncryptTitleKey() = %x, want %s", got, want)
	}
}

func TestGenerateTitleKeyRoundTripsThroughUnwrap(t *testing.T) {
	keys := &StaticKeyProvider{
		CommonKeys: [NumCommonKeys]ctrutil.Key128{
			0: {0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10},
		},
	}

	const titleID uint64 = 0x0004000000033500

	plain, encrypted, err := GenerateTitleKey(keys, "0004000000033500", "")
	if err != nil {
		t.Fatalf("GenerateTitleKey: %v", err)
	}

	unwrapped, err := UnwrapTitleKey(keys, 0, titleID, encrypted)
	if err != nil {
		t.Fatalf("UnwrapTitleKey: %v", err)
	}

	if unwrapped != plain {
		t.Errorf("round trip mismatch: wrapped/unwrapped %x, want %x", unwrapped, plain)
	}
}
