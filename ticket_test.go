package ctrcia

import (
	"bytes"
	"testing"
)

func TestTicketRoundTrip(t *testing.T) {
	original := &Ticket{
		Issuer:             "Root-CA00000003-XS0000000c",
		Version:            1,
		TicketID:           0x0001020304050607,
		ConsoleID:          0x08090A0B,
		TitleID:            0x0004000000033500,
		TicketTitleVersion: 42,
		LicenseType:        0x01,
		CommonKeyIndex:     0,
		EShopAccountID:     0x11223344,
		Audit:              1,
		EncryptedTitleKey:  [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10},
	}

	var buf bytes.Buffer
	if _, err := original.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := ParseTicket(&buf)
	if err != nil {
		t.Fatalf("ParseTicket: %v", err)
	}

	if got.Issuer != original.Issuer {
		t.Errorf("Issuer = %q, want %q", got.Issuer, original.Issuer)
	}
	if got.TicketID != original.TicketID {
		t.Errorf("TicketID = %#x, want %#x", got.TicketID, original.TicketID)
	}
	if got.ConsoleID != original.ConsoleID {
		t.Errorf("ConsoleID = %#x, want %#x", got.ConsoleID, original.ConsoleID)
	}
	if got.TitleID != original.TitleID {
		t.Errorf("TitleID = %#x, want %#x", got.TitleID, original.TitleID)
	}
	if got.TicketTitleVersion != original.TicketTitleVersion {
		t.Errorf("TicketTitleVersion = %d, want %d", got.TicketTitleVersion, original.TicketTitleVersion)
	}
	if got.CommonKeyIndex != original.CommonKeyIndex {
		t.Errorf("CommonKeyIndex = %d, want %d", got.CommonKeyIndex, original.CommonKeyIndex)
	}
	if got.EncryptedTitleKey != original.EncryptedTitleKey {
		t.Errorf("EncryptedTitleKey = %x, want %x", got.EncryptedTitleKey, original.EncryptedTitleKey)
	}
	if got.SignatureType != SignatureRSA2048SHA256 {
		t.Errorf("a freshly built ticket should default to RSA2048SHA256, got %#x", got.SignatureType)
	}
}

func TestTicketDefaultContentIndexMarksIndexZero(t *testing.T) {
	ticket := &Ticket{Issuer: "Root-CA00000003-XS0000000c"}

	var buf bytes.Buffer
	if _, err := ticket.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := ParseTicket(&buf)
	if err != nil {
		t.Fatalf("ParseTicket: %v", err)
	}
	if len(got.ContentIndex) == 0 {
		t.Fatal("expected a default content index to be emitted")
	}
	if got.ContentIndex[8] != 0x80 {
		t.Errorf("default content index bitmap[0] = %#x, want 0x80 (index 0 marked present)", got.ContentIndex[8])
	}
}

func TestTicketContentIndexMaskCoversEveryDeclaredIndex(t *testing.T) {
	ticket := &Ticket{Issuer: "Root-CA00000003-XS0000000c"}
	ticket.contentIndices = []uint16{0, 1, 9}

	var buf bytes.Buffer
	if _, err := ticket.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := ParseTicket(&buf)
	if err != nil {
		t.Fatalf("ParseTicket: %v", err)
	}
	if got.ContentIndex[8] != 0xC0 {
		t.Errorf("bitmap[0] = %#x, want 0xC0 (indices 0 and 1 present)", got.ContentIndex[8])
	}
	if got.ContentIndex[8+1] != 0x40 {
		t.Errorf("bitmap[1] = %#x, want 0x40 (index 9 present)", got.ContentIndex[9])
	}
}

func TestDecryptedTitleKeyUnwrapsUnderCommonKeyIndex(t *testing.T) {
	keys := &StaticKeyProvider{}
	ticket := &Ticket{TitleID: 0x0004000000033500, CommonKeyIndex: 0}

	if _, err := ticket.DecryptedTitleKey(keys); err != nil {
		t.Fatalf("DecryptedTitleKey: %v", err)
	}
}
