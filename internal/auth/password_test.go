package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("S3cure!pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "S3cure!pass" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPasswordHash("S3cure!pass", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("wrong-password", hash) {
		t.Error("wrong password accepted")
	}
}

func TestIsPasswordComplex(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"S3cure!pass", true},
		{"short1!", false},
		{"onlyletters", false},
		{"12345678!", false},
		{"letters1234", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsPasswordComplex(tt.password); got != tt.want {
			t.Errorf("IsPasswordComplex(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}
}
