package promptsync

import "testing"

func TestHashAndVerifyAdminSecret(t *testing.T) {
	hash, err := HashAdminSecret("hunter2")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "hunter2" {
		t.Fatalf("expected hash, got plaintext")
	}
	if !VerifyAdminSecret(hash, "hunter2") {
		t.Fatalf("expected correct secret to verify")
	}
	if VerifyAdminSecret(hash, "wrong") {
		t.Fatalf("expected wrong secret to fail")
	}
}

func TestHashAdminSecretSalted(t *testing.T) {
	a, err := HashAdminSecret("same")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	b, err := HashAdminSecret("same")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if a == b {
		t.Fatalf("expected salted hashes to differ")
	}
}

func TestHashAdminSecretRejectsEmpty(t *testing.T) {
	if _, err := HashAdminSecret(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := HashAdminSecret("   "); err == nil {
		t.Fatalf("expected error for blank secret")
	}
}

func TestVerifyAdminSecretEmptyHash(t *testing.T) {
	if VerifyAdminSecret("", "anything") {
		t.Fatalf("expected empty hash never to verify")
	}
}
