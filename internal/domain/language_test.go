package domain

import (
	"errors"
	"testing"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"English", English, false},
		{"spanish", Spanish, false},
		{" FRENCH ", French, false},
		{"German", German, false},
		{"italian", Italian, false},
		{"Klingon", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLanguage(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidLanguage) {
					t.Fatalf("expected ErrInvalidLanguage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseLanguage(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidateWordCount(t *testing.T) {
	for _, n := range []int{MinWordCount, DefaultWordCount, MaxWordCount} {
		if err := ValidateWordCount(n); err != nil {
			t.Errorf("ValidateWordCount(%d) = %v", n, err)
		}
	}
	for _, n := range []int{0, MinWordCount - 1, MaxWordCount + 1} {
		if err := ValidateWordCount(n); !errors.Is(err, ErrInvalidWordCount) {
			t.Errorf("ValidateWordCount(%d) = %v, want ErrInvalidWordCount", n, err)
		}
	}
}
