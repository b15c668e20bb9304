package lists

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/kvstore"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/persist"
	"github.com/starford/folio/internal/testutil"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newTestState(t *testing.T, store kvstore.Store) (*State, *persist.Queue) {
	t.Helper()
	q := testutil.Queue(t)
	c := &clock{t: time.Date(2024, 10, 15, 9, 0, 0, 0, time.UTC)}
	return New(store, q, testutil.Logger(), WithClock(c.now)), q
}

func file(name string) models.FileRecord {
	return models.FileRecord{
		FileName:     name,
		FullPath:     `C:\books\` + name,
		Title:        name,
		ModifiedDate: "2024-01-01T00:00:00",
	}
}

func stored(t *testing.T, store kvstore.Store, key string) ([]models.ListItem, bool) {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		return nil, false
	}
	var items []models.ListItem
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatal(err)
	}
	return items, true
}

func TestLoad_PreservesStoredOrder(t *testing.T) {
	store := testutil.FileStore(t, kvstore.ListsStore)
	ctx := context.Background()
	_ = store.Set(ctx, "physics", []models.ListItem{file("a.pdf")})
	_ = store.Set(ctx, "art", []models.ListItem{})
	_ = store.Save(ctx)

	s, _ := newTestState(t, store)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	names := s.Names()
	if len(names) != 2 || names[0] != "physics" || names[1] != "art" {
		t.Fatalf("names = %v", names)
	}
	if !s.Loaded() {
		t.Error("not loaded")
	}
}

func TestLoad_FailureStartsEmpty(t *testing.T) {
	s, _ := newTestState(t, testutil.FailingStore{FailReads: true})
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !s.Loaded() || len(s.All()) != 0 {
		t.Error("failed load should leave an empty loaded slice")
	}
}

func TestCreateList_Upsert(t *testing.T) {
	store := testutil.FileStore(t, kvstore.ListsStore)
	s, q := newTestState(t, store)

	_ = s.CreateList("a", nil)
	_ = s.CreateList("b", nil)
	_ = s.CreateList("a", []models.ListItem{file("x.pdf")})

	names := s.Names()
	if len(names) != 2 || names[0] != "a" {
		t.Fatalf("upsert moved the list: %v", names)
	}
	l, _ := s.Get("a")
	if len(l.Items) != 1 {
		t.Fatalf("items = %v", l.Items)
	}
	testutil.Flush(t, q)
	if items, ok := stored(t, store, "a"); !ok || len(items) != 1 {
		t.Errorf("stored a = %v", items)
	}
}

func TestAddToList_DedupeKeepsFirstDate(t *testing.T) {
	store := testutil.FileStore(t, kvstore.ListsStore)
	s, q := newTestState(t, store)
	_ = s.CreateList("p", nil)

	if !s.AddToList("p", file("a.pdf")) {
		t.Fatal("first add rejected")
	}
	first, _ := s.Get("p")
	date := first.Items[0].DateAdded

	dup := file("a.pdf")
	dup.FullPath = `D:\elsewhere\a.pdf`
	if s.AddToList("p", dup) {
		t.Error("duplicate file name accepted")
	}
	l, _ := s.Get("p")
	if len(l.Items) != 1 || l.Items[0].DateAdded != date {
		t.Errorf("items = %+v", l.Items)
	}
	if l.Items[0].DateAdded == "" {
		t.Error("dateAdded not stamped")
	}

	testutil.Flush(t, q)
	items, _ := stored(t, store, "p")
	if len(items) != 1 || items[0].DateAdded != date {
		t.Errorf("stored = %+v", items)
	}
}

func TestAddToList_MissingListIsCreated(t *testing.T) {
	s, _ := newTestState(t, testutil.FileStore(t, kvstore.ListsStore))
	s.AddToList("new", file("a.pdf"))
	if l, ok := s.Get("new"); !ok || len(l.Items) != 1 {
		t.Fatalf("list = %+v ok=%v", l, ok)
	}
}

func TestRemoveFromList(t *testing.T) {
	s, _ := newTestState(t, testutil.FileStore(t, kvstore.ListsStore))
	s.AddToList("p", file("a.pdf"))
	s.AddToList("p", file("b.pdf"))

	if !s.RemoveFromList("p", "a.pdf") {
		t.Fatal("remove failed")
	}
	if s.RemoveFromList("p", "a.pdf") {
		t.Error("second remove should be a no-op")
	}
	l, _ := s.Get("p")
	if len(l.Items) != 1 || l.Items[0].FileName != "b.pdf" {
		t.Errorf("items = %+v", l.Items)
	}
}

func TestRemoveList(t *testing.T) {
	store := testutil.FileStore(t, kvstore.ListsStore)
	s, q := newTestState(t, store)
	_ = s.CreateList("gone", nil)
	testutil.Flush(t, q)

	if !s.RemoveList("gone") {
		t.Fatal("remove failed")
	}
	testutil.Flush(t, q)
	if _, ok := stored(t, store, "gone"); ok {
		t.Error("list still stored")
	}
}

func TestRenameList_KeepsPosition(t *testing.T) {
	store := testutil.FileStore(t, kvstore.ListsStore)
	s, q := newTestState(t, store)
	_ = s.CreateList("a", nil)
	s.AddToList("b", file("x.pdf"))
	_ = s.CreateList("c", nil)

	if err := s.RenameList("b", "bee"); err != nil {
		t.Fatal(err)
	}
	names := s.Names()
	if names[1] != "bee" {
		t.Fatalf("names = %v", names)
	}
	testutil.Flush(t, q)
	if _, ok := stored(t, store, "b"); ok {
		t.Error("old key still stored")
	}
	if items, ok := stored(t, store, "bee"); !ok || len(items) != 1 {
		t.Errorf("new key = %v", items)
	}
}

func TestRenameList_ReloadKeepsOrder(t *testing.T) {
	store := testutil.FileStore(t, kvstore.ListsStore)
	s, q := newTestState(t, store)
	for _, n := range []string{"a", "b", "c"} {
		_ = s.CreateList(n, nil)
	}
	if err := s.RenameList("a", "first"); err != nil {
		t.Fatal(err)
	}
	testutil.Flush(t, q)

	fresh, _ := newTestState(t, store)
	if err := fresh.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := fresh.Names()
	if len(got) != 3 || got[0] != "first" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("reloaded names = %v, want [first b c]", got)
	}
}

func TestAddToList_NestedChangePersistsLatest(t *testing.T) {
	store := testutil.FileStore(t, kvstore.ListsStore)
	q := testutil.Queue(t)
	var s *State
	var nested atomic.Bool
	s = New(store, q, testutil.Logger(), WithOnChange(func() {
		if nested.CompareAndSwap(false, true) {
			s.AddToList("L", file("b.pdf"))
		}
	}))

	s.AddToList("L", file("a.pdf"))
	testutil.Flush(t, q)

	l, _ := s.Get("L")
	items, ok := stored(t, store, "L")
	if !ok || len(items) != len(l.Items) || len(items) != 2 {
		t.Fatalf("memory=%d items, persisted=%d items", len(l.Items), len(items))
	}
}

func TestRenameList_DuplicateDoesNotPersist(t *testing.T) {
	rec := testutil.NewRecordingStore(testutil.FileStore(t, kvstore.ListsStore))
	s, q := newTestState(t, rec)
	_ = s.CreateList("a", nil)
	_ = s.CreateList("b", nil)
	testutil.Flush(t, q)
	before := len(rec.Calls())

	err := s.RenameList("a", "b")
	if !errors.Is(err, apperr.ErrDuplicateName) {
		t.Fatalf("err = %v", err)
	}
	if apperr.KindOf(err) != apperr.KindDuplicateName {
		t.Errorf("kind = %q", apperr.KindOf(err))
	}
	testutil.Flush(t, q)
	if after := len(rec.Calls()); after != before {
		t.Errorf("duplicate rename issued %d store calls", after-before)
	}
	if names := s.Names(); names[0] != "a" || names[1] != "b" {
		t.Errorf("names changed: %v", names)
	}
}

func TestRenameList_NotFound(t *testing.T) {
	s, _ := newTestState(t, testutil.FileStore(t, kvstore.ListsStore))
	if err := s.RenameList("nope", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestPinItem_Order(t *testing.T) {
	s, _ := newTestState(t, testutil.FileStore(t, kvstore.ListsStore))
	for _, n := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"} {
		s.AddToList("p", file(n))
	}

	s.PinItem("p", "a.pdf")
	s.UnpinItem("p", "d.pdf")
	s.PinItem("p", "b.pdf")
	s.UnpinItem("p", "d.pdf")
	s.PinItem("p", "c.pdf")

	l, _ := s.Get("p")
	want := map[string]int{"a.pdf": 0, "b.pdf": 1, "c.pdf": 2}
	for _, it := range l.Items {
		w, pinned := want[it.FileName]
		if it.IsPinned != pinned {
			t.Errorf("%s pinned = %v", it.FileName, it.IsPinned)
			continue
		}
		if !pinned {
			if it.PinnedOrder != nil {
				t.Errorf("%s has order without pin", it.FileName)
			}
			continue
		}
		if it.PinnedOrder == nil || *it.PinnedOrder != w {
			t.Errorf("%s order = %v, want %d", it.FileName, it.PinnedOrder, w)
		}
	}

	s.UnpinItem("p", "a.pdf")
	l, _ = s.Get("p")
	if l.Items[0].IsPinned || l.Items[0].PinnedOrder != nil {
		t.Errorf("unpin left %+v", l.Items[0].ListMeta)
	}
	// Next pin continues after the highest remaining order.
	s.PinItem("p", "d.pdf")
	l, _ = s.Get("p")
	if got := *l.Items[3].PinnedOrder; got != 3 {
		t.Errorf("d order = %d, want 3", got)
	}
}

func TestUpdateFileInAllLists_PreservesMeta(t *testing.T) {
	s, _ := newTestState(t, testutil.FileStore(t, kvstore.ListsStore))
	s.AddToList("one", file("a.pdf"))
	s.AddToList("two", file("a.pdf"))
	s.PinItem("one", "a.pdf")
	before, _ := s.Get("one")
	meta := before.Items[0].ListMeta

	updated := file("a.pdf")
	updated.Title = "Renamed"
	updated.DateAdded = "should be ignored"
	updated.Highlights = []models.Highlight{{Page: 1, HighlightedText: "x"}}
	if !s.UpdateFileInAllLists(updated, "full_path") {
		t.Fatal("no list updated")
	}

	one, _ := s.Get("one")
	got := one.Items[0]
	if got.Title != "Renamed" || len(got.Highlights) != 1 {
		t.Errorf("fields not replaced: %+v", got)
	}
	if got.DateAdded != meta.DateAdded || !got.IsPinned || *got.PinnedOrder != *meta.PinnedOrder {
		t.Errorf("meta = %+v, want %+v", got.ListMeta, meta)
	}
	two, _ := s.Get("two")
	if two.Items[0].Title != "Renamed" || two.Items[0].IsPinned {
		t.Errorf("second list item = %+v", two.Items[0])
	}
}

func TestUpdateFileInAllLists_EmptyFieldNeverMatches(t *testing.T) {
	s, _ := newTestState(t, testutil.FileStore(t, kvstore.ListsStore))
	s.AddToList("p", file("a.pdf"))
	if s.UpdateFileInAllLists(models.FileRecord{Title: "x"}, "id") {
		t.Error("records without id matched each other")
	}
}

func TestUpdateFilesInAllLists_Batch(t *testing.T) {
	store := testutil.FileStore(t, kvstore.ListsStore)
	s, q := newTestState(t, store)
	s.AddToList("p", file("a.pdf"))
	s.AddToList("q", file("b.pdf"))

	a, b := file("a.pdf"), file("b.pdf")
	a.Highlights = []models.Highlight{}
	b.Highlights = []models.Highlight{{Page: 2}}
	if !s.UpdateFilesInAllLists([]models.FileRecord{a, b, file("zzz.pdf")}) {
		t.Fatal("nothing updated")
	}
	testutil.Flush(t, q)
	items, _ := stored(t, store, "q")
	if len(items) != 1 || len(items[0].Highlights) != 1 {
		t.Errorf("stored q = %+v", items)
	}
	items, _ = stored(t, store, "p")
	if items[0].Highlights == nil {
		t.Error("empty highlights lost their fetched marker")
	}
}

func TestRemoveFileFromAllLists(t *testing.T) {
	s, _ := newTestState(t, testutil.FileStore(t, kvstore.ListsStore))
	s.AddToList("p", file("a.pdf"))
	s.AddToList("p", file("b.pdf"))
	s.AddToList("q", file("a.pdf"))

	if !s.RemoveFileFromAllLists(`C:\books\a.pdf`) {
		t.Fatal("nothing removed")
	}
	if _, ok := s.FindByFullPath(`C:\books\a.pdf`); ok {
		t.Error("file still in some list")
	}
	p, _ := s.Get("p")
	if len(p.Items) != 1 {
		t.Errorf("p = %+v", p.Items)
	}
}

func TestWriteFailure_KeepsMemory(t *testing.T) {
	q := testutil.Queue(t)
	var failed atomic.Int32
	q.OnFailure(func(persist.Failure) { failed.Add(1) })
	s := New(testutil.FailingStore{}, q, testutil.Logger())

	s.AddToList("p", file("a.pdf"))
	testutil.Flush(t, q)

	if failed.Load() == 0 {
		t.Error("failure not reported")
	}
	if l, ok := s.Get("p"); !ok || len(l.Items) != 1 {
		t.Errorf("memory rolled back: %+v", l)
	}
}

func TestSortForDisplay(t *testing.T) {
	mk := func(name, mod string, pinned *int) models.FileRecord {
		f := file(name)
		f.ModifiedDate = mod
		if pinned != nil {
			f.IsPinned = true
			f.PinnedOrder = pinned
		}
		return f
	}
	zero, one := 0, 1
	items := []models.FileRecord{
		mk("old.pdf", "2020-01-01", nil),
		mk("p1.pdf", "2019-01-01", &one),
		mk("new.pdf", "2024-01-01", nil),
		mk("p0.pdf", "2018-01-01", &zero),
	}

	got := SortForDisplay(items, SortSpec{}, true)
	want := []string{"p0.pdf", "p1.pdf", "new.pdf", "old.pdf"}
	for i, w := range want {
		if got[i].FileName != w {
			t.Fatalf("pinned order = %v", names(got))
		}
	}

	got = SortForDisplay(items, DefaultSort, false)
	want = []string{"new.pdf", "old.pdf", "p1.pdf", "p0.pdf"}
	for i, w := range want {
		if got[i].FileName != w {
			t.Fatalf("plain order = %v", names(got))
		}
	}

	unordered := mk("loose.pdf", "2025-01-01", nil)
	unordered.IsPinned = true
	got = SortForDisplay([]models.FileRecord{unordered, mk("p1.pdf", "2019-01-01", &one)}, SortSpec{}, true)
	if names(got)[0] != "p1.pdf" || names(got)[1] != "loose.pdf" {
		t.Errorf("pin without order should sort last among pins: %v", names(got))
	}

	byTitle := []models.FileRecord{file("b"), file("A"), file("c")}
	got = SortForDisplay(byTitle, SortSpec{Column: "title"}, false)
	if names(got)[0] != "A" || names(got)[1] != "b" {
		t.Errorf("case-insensitive sort = %v", names(got))
	}
}

func names(fs []models.FileRecord) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.FileName
	}
	return out
}

func TestMoveFileInAllLists(t *testing.T) {
	store := testutil.FileStore(t, "lists")
	s, q := newTestState(t, store)
	s.AddToList("a", file("old.pdf"))
	s.PinItem("a", "old.pdf")

	moved := file("new.pdf")
	if !s.MoveFileInAllLists(`C:\books\old.pdf`, moved) {
		t.Fatal("nothing moved")
	}
	testutil.Flush(t, q)

	items, _ := stored(t, store, "a")
	if len(items) != 1 || items[0].FileName != "new.pdf" || !items[0].IsPinned || items[0].DateAdded == "" {
		t.Errorf("stored = %+v", items)
	}
	if s.MoveFileInAllLists("", moved) {
		t.Error("empty path matched")
	}
}
