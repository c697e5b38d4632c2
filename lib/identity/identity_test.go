// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"strings"
	"testing"
)

// testPrivateKey is a throwaway secp256k1 key used across the tests.
const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestParseAddress_Normalizes(t *testing.T) {
	parsed, err := ParseAddress("0xAbCdEf0123456789abcdef0123456789ABCDEF01")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if parsed != Address("abcdef0123456789abcdef0123456789abcdef01") {
		t.Errorf("parsed = %q, want lower-cased without prefix", parsed)
	}
	if parsed.String() != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Errorf("String() = %q", parsed.String())
	}
}

func TestParseAddress_RejectsBadInput(t *testing.T) {
	for _, input := range []string{
		"",
		"0x1234",
		strings.Repeat("g", 40),
		strings.Repeat("a", 39),
		strings.Repeat("a", 41),
	} {
		if _, err := ParseAddress(input); err == nil {
			t.Errorf("ParseAddress(%q) succeeded, want error", input)
		}
	}
}

func TestAddress_Empty(t *testing.T) {
	if !EmptyAddress.IsEmpty() {
		t.Error("EmptyAddress.IsEmpty() = false")
	}
	if !Address("").IsEmpty() {
		t.Error("zero Address.IsEmpty() = false")
	}
	parsed, err := ParseAddress(string(EmptyAddress))
	if err != nil {
		t.Fatalf("ParseAddress(empty sentinel): %v", err)
	}
	if !parsed.IsEmpty() {
		t.Error("parsed empty sentinel reported non-empty")
	}
}

func TestAddress_Short(t *testing.T) {
	address := Address("abcdef0123456789abcdef0123456789abcdef01")
	short := address.Short()
	if !strings.HasPrefix(short, "0xabcd") || !strings.HasSuffix(short, "ef01") {
		t.Errorf("Short() = %q", short)
	}
}

func TestLocalAccount_SignAndRecover(t *testing.T) {
	account, err := NewLocalAccount(testPrivateKey, -1)
	if err != nil {
		t.Fatalf("NewLocalAccount: %v", err)
	}
	defer account.Lock()

	payload := []byte("negotiation payload")
	signature, err := account.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	recovered, err := RecoverSigner(Keccak256(payload), signature)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if recovered != account.Address() {
		t.Errorf("recovered = %s, want %s", recovered, account.Address())
	}
}

func TestLocalAccount_LockZeroizes(t *testing.T) {
	account, err := NewLocalAccount(testPrivateKey, 3)
	if err != nil {
		t.Fatalf("NewLocalAccount: %v", err)
	}
	if account.DerivationIndex() != 3 {
		t.Errorf("DerivationIndex = %d, want 3", account.DerivationIndex())
	}
	if account.Locked() {
		t.Fatal("account locked before Lock()")
	}

	if err := account.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if !account.Locked() {
		t.Error("account not locked after Lock()")
	}
	if _, err := account.Sign([]byte("data")); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("Sign after Lock = %v, want ErrAccountLocked", err)
	}

	// Lock is idempotent.
	if err := account.Lock(); err != nil {
		t.Errorf("second Lock: %v", err)
	}
}

func TestSealedBuffer_ZeroesSource(t *testing.T) {
	source := []byte{1, 2, 3, 4}
	sealed, err := SealBytes(source)
	if err != nil {
		t.Fatalf("SealBytes: %v", err)
	}
	defer sealed.Destroy()

	for index, value := range source {
		if value != 0 {
			t.Fatalf("source[%d] = %d after sealing, want 0", index, value)
		}
	}

	err = sealed.Use(func(data []byte) error {
		if len(data) != 4 || data[0] != 1 || data[3] != 4 {
			t.Errorf("sealed contents = %v", data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Use: %v", err)
	}

	if err := sealed.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := sealed.Use(func([]byte) error { return nil }); !errors.Is(err, ErrSealedDestroyed) {
		t.Errorf("Use after Destroy = %v, want ErrSealedDestroyed", err)
	}
}

func TestAccountManager_IsSigner(t *testing.T) {
	account, err := NewLocalAccount(testPrivateKey, -1)
	if err != nil {
		t.Fatalf("NewLocalAccount: %v", err)
	}
	defer account.Lock()

	manager := NewAccountManager(account)
	if !manager.IsSigner(account.Address()) {
		t.Error("IsSigner(own address) = false")
	}
	if manager.IsSigner(EmptyAddress) {
		t.Error("IsSigner(empty) = true")
	}
	if manager.SignerAddress() != account.Address() {
		t.Errorf("SignerAddress = %s", manager.SignerAddress())
	}
}

func TestRegisteredAccount(t *testing.T) {
	address, err := ParseAddress("abcdef0123456789abcdef0123456789abcdef01")
	if err != nil {
		t.Fatal(err)
	}
	registered := NewRegisteredAccount(address, "alice")
	if registered.Address() != address {
		t.Errorf("Address = %s", registered.Address())
	}
	if registered.Name() != "alice" {
		t.Errorf("Name = %q", registered.Name())
	}
}
