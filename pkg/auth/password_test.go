package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Turf#Night2024")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "Turf#Night2024" {
		t.Fatalf("expected an opaque hash")
	}
	if !CheckPassword("Turf#Night2024", hash) {
		t.Fatalf("expected password check to pass")
	}
	if CheckPassword("turf#night2024", hash) {
		t.Fatalf("expected password check to fail")
	}
	if CheckPassword("Turf#Night2024", "not-a-hash") {
		t.Fatalf("garbage hash must not match")
	}
}

func TestHashPasswordRejectsOverlong(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected too long, got %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		pw   string
		want error
	}{
		{"Str0ng#Password!", nil},
		{"Sh0rt!Aa", ErrPasswordTooShort},
		{"alllowercase123!", ErrPasswordWeak},
		{"ALLUPPERCASE123!", ErrPasswordWeak},
		{"NoDigitsHere!!!", ErrPasswordWeak},
		{"NoSpecials1234", ErrPasswordWeak},
	}
	for _, tc := range cases {
		if err := ValidatePassword(tc.pw); !errors.Is(err, tc.want) {
			t.Fatalf("%q: got %v want %v", tc.pw, err, tc.want)
		}
	}
}
