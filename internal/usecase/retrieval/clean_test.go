package retrieval

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"cid glyphs", "Hel(cid:12)lo (cid:3)world", "Hello world"},
		{"page markers", "intro\nPage 3 of 10\nbody", "intro\nbody"},
		{"form feed", "end of page\fnext page", "end of page\nnext page"},
		{"crlf and tabs", "a\r\nb\tc\rd", "a\nb c\nd"},
		{"blank runs", "a\n\n\n   \n\nb", "a\nb"},
		{"space runs", "a    b    c", "a b c"},
		{"control chars", "a\x00b\x07c�", "abc"},
		{"trim", "  \n text \n  ", "text"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Clean(tc.in); got != tc.want {
				t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"Page 1 of 2\n\n  Cam   sites (cid:7)\t\tguide \f\fPage 2 of 2 end",
		"x  \n  \n y",
	}
	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Errorf("Clean not idempotent: %q -> %q", once, twice)
		}
	}
}
