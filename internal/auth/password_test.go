package auth

import "testing"

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, salt, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "" || salt == "" {
		t.Fatal("expected non-empty hash and salt")
	}

	if !VerifyPassword("correct horse battery staple", hash, salt) {
		t.Error("correct password did not verify")
	}
	if VerifyPassword("wrong password", hash, salt) {
		t.Error("wrong password verified")
	}
	if VerifyPassword("correct horse battery staple", hash, "deadbeef") {
		t.Error("wrong salt verified")
	}
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	hash1, salt1, err := HashPassword("secret123")
	if err != nil {
		t.Fatal(err)
	}
	hash2, salt2, err := HashPassword("secret123")
	if err != nil {
		t.Fatal(err)
	}

	if salt1 == salt2 {
		t.Error("two hashes of the same password reused a salt")
	}
	if hash1 == hash2 {
		t.Error("two salted hashes of the same password are identical")
	}
}
