package codec

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestS2Roundtrip(t *testing.T) {
	var c S2
	want := bytes.Repeat([]byte("compressible cache payload "), 256)

	packed, err := c.Compress(want)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(packed) >= len(want) {
		t.Errorf("compressed %d bytes to %d, expected a reduction", len(want), len(packed))
	}

	got, err := c.Decompress(packed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("roundtrip mismatch")
	}
}

func TestS2RejectsGarbage(t *testing.T) {
	var c S2
	if _, err := c.Decompress([]byte("definitely not s2 data")); err == nil {
		t.Fatal("Decompress accepted garbage")
	}
}

func newTestAESGCM(t *testing.T) *AESGCM {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		t.Fatal(err)
	}
	e, err := NewAESGCM(key)
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}
	return e
}

func TestAESGCMRoundtrip(t *testing.T) {
	e := newTestAESGCM(t)
	want := []byte("sensitive cache payload")

	ct, err := e.Encrypt(want)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(ct, want) {
		t.Fatal("plaintext visible in ciphertext")
	}

	got, err := e.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("roundtrip mismatch")
	}
}

func TestAESGCMNonceUnique(t *testing.T) {
	e := newTestAESGCM(t)
	a, err := e.Encrypt([]byte("same input"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Encrypt([]byte("same input"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same input produced identical ciphertext")
	}
}

func TestAESGCMTamperFailsClosed(t *testing.T) {
	e := newTestAESGCM(t)
	ct, err := e.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	ct[len(ct)-1] ^= 0xff
	if _, err := e.Decrypt(ct); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("Decrypt(tampered) = %v, want ErrDecrypt", err)
	}

	if _, err := e.Decrypt([]byte("short")); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("Decrypt(truncated) = %v, want ErrDecrypt", err)
	}
}

func TestNewAESGCMRejectsBadKey(t *testing.T) {
	if _, err := NewAESGCM(make([]byte, 16)); err == nil {
		t.Fatal("NewAESGCM accepted a 16-byte key")
	}
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "cache.key")

	key, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey (create): %v", err)
	}
	if len(key) != KeySize {
		t.Fatalf("generated key is %d bytes, want %d", len(key), KeySize)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file mode = %o, want 600", perm)
	}

	again, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey (load): %v", err)
	}
	if !bytes.Equal(key, again) {
		t.Error("second load returned a different key")
	}
}

func TestLoadOrCreateKeyRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.key")
	if err := os.WriteFile(path, []byte("too short"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreateKey(path); err == nil {
		t.Fatal("LoadOrCreateKey accepted a malformed key file")
	}
}
