package view

import (
	"testing"

	"github.com/starford/folio/internal/apperr"
)

func TestDefaults(t *testing.T) {
	v := New().Snapshot()
	if v.ActiveMode != ModeHighlights || v.FetchCount != 50 || v.VisibleHighlightsCount != 50 {
		t.Errorf("defaults = %+v", v)
	}
	if v.ActiveProject != "" || v.SelectedBook != "" || v.HasMore != nil {
		t.Errorf("defaults = %+v", v)
	}
}

func TestSelectBook_ClearsHiddenAndResets(t *testing.T) {
	s := New()
	s.HideBook("a")
	s.SetVisibleHighlightsCount(200)
	s.SelectBook("b")

	v := s.Snapshot()
	if v.SelectedBook != "b" || len(v.HiddenBooks) != 0 || v.VisibleHighlightsCount != 50 {
		t.Errorf("state = %+v", v)
	}
	s.RemoveBookFilter()
	if s.Snapshot().SelectedBook != "" {
		t.Error("book filter not removed")
	}
}

func TestHideBook_Toggles(t *testing.T) {
	s := New()
	s.SelectBook("a")
	s.HideBook("a")
	s.HideBook("b")
	v := s.Snapshot()
	if v.SelectedBook != "" || len(v.HiddenBooks) != 2 {
		t.Fatalf("state = %+v", v)
	}
	s.HideBook("a")
	if got := s.Snapshot().HiddenBooks; len(got) != 1 || got[0] != "b" {
		t.Errorf("hidden = %v", got)
	}
}

func TestSetActiveProject_RewindsFetch(t *testing.T) {
	s := New(WithFetchCount(20))
	s.MoreFiles()
	s.SelectBook("x")
	if s.Snapshot().FetchCount != 40 {
		t.Fatalf("fetch = %d", s.Snapshot().FetchCount)
	}
	s.SetActiveProject("reading")
	v := s.Snapshot()
	if v.ActiveProject != "reading" || v.FetchCount != 20 || v.SelectedBook != "" {
		t.Errorf("state = %+v", v)
	}
}

func TestMoreFiles_StopsWithoutMore(t *testing.T) {
	s := New()
	s.SetHasMore(false)
	if s.MoreFiles() {
		t.Error("grew although backend has no more")
	}
	s.SetHasMore(true)
	if !s.MoreFiles() || s.Snapshot().FetchCount != 100 {
		t.Errorf("fetch = %d", s.Snapshot().FetchCount)
	}
}

func TestMoreHighlights_Capped(t *testing.T) {
	s := New()
	s.MoreHighlights(70)
	if got := s.Snapshot().VisibleHighlightsCount; got != 70 {
		t.Errorf("visible = %d, want 70", got)
	}
	s.MoreHighlights(70)
	if got := s.Snapshot().VisibleHighlightsCount; got != 70 {
		t.Errorf("visible = %d after cap", got)
	}
}

func TestToggleShowOnlyAnnotated(t *testing.T) {
	s := New()
	s.SetVisibleHighlightsCount(300)
	s.ToggleShowOnlyAnnotated()
	v := s.Snapshot()
	if !v.ShowOnlyAnnotated || v.VisibleHighlightsCount != 50 {
		t.Errorf("state = %+v", v)
	}
}

func TestSetActiveMode_Validates(t *testing.T) {
	s := New()
	if err := s.SetActiveMode("bogus"); apperr.KindOf(err) != apperr.KindInvalid {
		t.Errorf("err = %v", err)
	}
	if err := s.SetActiveMode(ModeNoHighlights); err != nil {
		t.Fatal(err)
	}
	if s.Snapshot().IncludeHighlights(50) {
		t.Error("no-highlights mode requested enrichment")
	}
}

func TestIncludeHighlights_PastFirstPage(t *testing.T) {
	s := New()
	if !s.Snapshot().IncludeHighlights(50) {
		t.Error("first page should request highlights")
	}
	s.MoreFiles()
	if s.Snapshot().IncludeHighlights(50) {
		t.Error("second page should not request highlights")
	}
}

func TestOnChange_SeesPrevAndNext(t *testing.T) {
	var prev, next Snapshot
	s := New(WithOnChange(func(p, n Snapshot) { prev, next = p, n }))
	s.SetSearchText("physics")
	if prev.SearchKey() == next.SearchKey() {
		t.Error("search key should change with search text")
	}
	s.SetHighlightsSearchText("x")
	if prev.SearchKey() != next.SearchKey() {
		t.Error("highlight filter should not change the search key")
	}
}
