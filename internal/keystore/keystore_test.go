package keystore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.bin")

	store, err := Open(path, "passphrase-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Set(KeyAccessToken, "tok-abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(KeyUserInfo, `{"nombre":"Ana"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := Open(path, "passphrase-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Token(); got != "tok-abc" {
		t.Fatalf("Token() = %q, want tok-abc", got)
	}
	if got, ok := reopened.Get(KeyUserInfo); !ok || got != `{"nombre":"Ana"}` {
		t.Fatalf("Get(user_info) = %q, %v", got, ok)
	}
}

func TestWrongPassphraseRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.bin")

	store, err := Open(path, "right")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := Open(path, "wrong"); !errors.Is(err, ErrBadPassphrase) {
		t.Fatalf("Open with wrong passphrase = %v, want ErrBadPassphrase", err)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "keystore.bin"), "p")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Set(KeyAccessToken, "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Delete(KeyAccessToken); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Token() != "" {
		t.Fatal("token survived delete")
	}
	// Deleting a missing key is fine.
	if err := store.Delete("missing"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestFileIsEncryptedAndPrivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.bin")
	store, err := Open(path, "p")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	secret := "plaintext-token-value"
	if err := store.Set(KeyAccessToken, secret); err != nil {
		t.Fatalf("Set: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if bytes.Contains(raw, []byte(secret)) {
		t.Fatal("secret stored in plaintext")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Fatalf("file mode = %o, want 600", mode)
	}
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "keystore.bin"), "p")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Token() != "" {
		t.Fatal("fresh store not empty")
	}
}
