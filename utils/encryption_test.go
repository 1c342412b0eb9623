package utils

import (
	"io"
	"log"
	"testing"

	"coldreach/config"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func withTestKey(t *testing.T) {
	t.Helper()
	prev := config.AppConfig.EncryptionKey
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"
	t.Cleanup(func() { config.AppConfig.EncryptionKey = prev })
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	withTestKey(t)

	secret := "app-specific-password"
	encrypted, err := Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if encrypted == secret {
		t.Fatal("ciphertext equals plaintext")
	}

	decrypted, err := Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted != secret {
		t.Fatalf("round trip gave %q", decrypted)
	}

	// Same plaintext twice must not produce the same ciphertext.
	second, err := Encrypt(secret)
	if err != nil {
		t.Fatalf("second Encrypt: %v", err)
	}
	if second == encrypted {
		t.Fatal("IV reuse: identical ciphertexts for identical plaintexts")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	withTestKey(t)

	if _, err := Decrypt("not base64!!"); err == nil {
		t.Error("invalid encoding accepted")
	}
	if _, err := Decrypt("aGk="); err == nil {
		t.Error("ciphertext shorter than the IV accepted")
	}
}
