package query

import "testing"

func TestBuild_OmitsEmptyFragments(t *testing.T) {
	got := Build(Parts{Text: "physics", Types: "ext:pdf|djvu"})
	if want := "physics ext:pdf|djvu"; got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
	got = Build(Parts{Types: "ext:pdf", Exclusion: `!wfn:"a.pdf"`, Include: `<C:\a.pdf>`})
	if want := `ext:pdf !wfn:"a.pdf" <C:\a.pdf>`; got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
	if got := Build(Parts{Text: "  "}); got != "" {
		t.Errorf("blank query = %q", got)
	}
}

func TestInclude(t *testing.T) {
	if got := Include(nil); got != "" {
		t.Errorf("empty include = %q", got)
	}
	got := Include([]string{`C:\a.pdf`, `D:\b.djvu`})
	if want := `<C:\a.pdf> | <D:\b.djvu>`; got != want {
		t.Errorf("include = %q, want %q", got, want)
	}
}

func TestByID(t *testing.T) {
	if got := ByID("123"); got != `frn:"123"` {
		t.Errorf("got %q", got)
	}
}

func TestByCreatedDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-10-15T22:30:00+00:00", `dc:"2024-10-16T01:30:00"`, true},
		{"2024-10-15T10:00:00+03:00", `dc:"2024-10-15T10:00:00"`, true},
		{"2024-10-15T10:00:00", `dc:"2024-10-15T13:00:00"`, true},
		{"", "", false},
		{"yesterday", "", false},
	}
	for _, tt := range tests {
		got, ok := ByCreatedDate(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ByCreatedDate(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
