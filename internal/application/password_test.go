package application

import "testing"

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := hashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}

	ok, err := verifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("verifyPassword failed: %v", err)
	}
	if !ok {
		t.Fatal("expected the original password to verify")
	}

	ok, err = verifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("verifyPassword failed: %v", err)
	}
	if ok {
		t.Fatal("expected a wrong password to fail verification")
	}

	if _, err := verifyPassword("anything", "not-an-encoded-hash"); err == nil {
		t.Fatal("expected malformed hashes to be rejected")
	}
}
