package rules

import (
	"errors"
	"testing"
)

func TestValidAgeBounds(t *testing.T) {
	cases := map[int]bool{17: false, 18: true, 40: true, 65: true, 66: false}
	for age, want := range cases {
		if got := ValidAge(age); got != want {
			t.Fatalf("ValidAge(%d)=%v want %v", age, got, want)
		}
	}
}

func TestAccountFieldLengths(t *testing.T) {
	if ValidUsername("ab") || !ValidUsername("abc") {
		t.Fatalf("username length rule broken")
	}
	if ValidPassword("12345") || !ValidPassword("123456") {
		t.Fatalf("password length rule broken")
	}
	if ValidPhone("080123456") || !ValidPhone("0801234567") {
		t.Fatalf("phone length rule broken")
	}
}

func TestSyntheticEmail(t *testing.T) {
	if got := SyntheticEmail(" Kemi ", "nightvibe.com"); got != "kemi@nightvibe.com" {
		t.Fatalf("unexpected email: %s", got)
	}
}

func TestParseAgeRange(t *testing.T) {
	r, err := ParseAgeRange("25-34")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !r.Contains(25) || !r.Contains(34) || r.Contains(24) || r.Contains(35) {
		t.Fatalf("range bounds should be inclusive: %+v", r)
	}

	for _, raw := range []string{"", "25", "a-b", "34-25", "-5-10"} {
		if _, err := ParseAgeRange(raw); !errors.Is(err, ErrInvalidAgeRange) {
			t.Fatalf("expected ErrInvalidAgeRange for %q, got %v", raw, err)
		}
	}
}

func TestStatusSegment(t *testing.T) {
	if got := StatusSegment("Single: looking"); got != "Single" {
		t.Fatalf("unexpected segment: %q", got)
	}
	if got := StatusSegment("Married"); got != "Married" {
		t.Fatalf("unexpected segment: %q", got)
	}
}
