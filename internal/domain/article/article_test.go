package article

import "testing"

func TestNew(t *testing.T) {
	a, err := New("cats", "<p>hi</p>", Usage{PromptTokens: 3, CompletionTokens: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Keyword() != "cats" || a.HTML() != "<p>hi</p>" {
		t.Errorf("got %q / %q", a.Keyword(), a.HTML())
	}
	if a.Usage().CompletionTokens != 5 {
		t.Errorf("Usage() = %+v", a.Usage())
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "<p>x</p>", Usage{}); err == nil {
		t.Error("expected error for empty keyword")
	}
	if _, err := New("cats", "", Usage{}); err == nil {
		t.Error("expected error for empty html")
	}
}
