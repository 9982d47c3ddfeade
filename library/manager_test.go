package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, file string) (*LibraryManager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), file)
	clock := &fakeClock{t: epoch}
	mgr, err := NewLibraryManager(path, "Test Library", WithLibraryOptions(WithClock(clock.Now)))
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr, path
}

func populate(t *testing.T, mgr *LibraryManager) {
	t.Helper()
	require.NoError(t, mgr.AddBook(Book{ID: 1, Title: "Persistent Book 1", Author: "Author A", ISBN: "111-111", PublicationYear: 2020, Available: true}))
	require.NoError(t, mgr.AddBook(Book{ID: 2, Title: "Persistent Book 2", Author: "Author B", ISBN: "222-222", PublicationYear: 2021, Available: true}))
	require.NoError(t, mgr.AddMember(Member{ID: 1, Name: "Persistent Member 1", Email: "member1@test.com", Phone: "555-1111"}))
	require.NoError(t, mgr.AddLibrarian(Librarian{ID: 1, Name: "Persistent Librarian 1", Email: "lib1@test.com"}))
}

func TestManagerStartsEmpty(t *testing.T) {
	for _, file := range []string{"lib.json", "lib.db"} {
		t.Run(file, func(t *testing.T) {
			mgr, _ := newManager(t, file)
			assert.Empty(t, mgr.GetAllBooks())
			assert.Equal(t, "Test Library", mgr.Library().Name())
			assert.False(t, mgr.Dirty())
		})
	}
}

func TestManagerPersistsAcrossReopen(t *testing.T) {
	for _, file := range []string{"lib.json", "lib.db"} {
		t.Run(file, func(t *testing.T) {
			mgr, path := newManager(t, file)
			populate(t, mgr)
			_, err := mgr.BorrowBook(1, 2, 1)
			require.NoError(t, err)
			assert.True(t, mgr.Dirty())

			require.NoError(t, mgr.Save())
			assert.False(t, mgr.Dirty())
			want := mgr.Library().Snapshot()
			require.NoError(t, mgr.Close())

			reopened, err := NewLibraryManager(path, "ignored when a snapshot exists")
			require.NoError(t, err)
			defer reopened.Close()
			assert.Equal(t, want, reopened.Library().Snapshot())
			assert.Equal(t, "Test Library", reopened.Library().Name())
		})
	}
}

func TestManagerRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := NewLibraryManager(path, "x")
	require.ErrorIs(t, err, ErrMalformedSnapshot)
}

func TestManagerReloadDiscardsChanges(t *testing.T) {
	mgr, _ := newManager(t, "lib.json")
	populate(t, mgr)
	require.NoError(t, mgr.Save())

	require.NoError(t, mgr.RemoveBook(1))
	require.NoError(t, mgr.Reload())
	assert.False(t, mgr.Dirty())

	_, err := mgr.GetBook(1)
	require.NoError(t, err)
}

func TestManagerSaveAsAndLoadFrom(t *testing.T) {
	mgr, _ := newManager(t, "lib.json")
	populate(t, mgr)

	other := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, mgr.SaveAs(other))
	assert.True(t, mgr.Dirty(), "SaveAs does not save the primary store")

	fresh, _ := newManager(t, "fresh.json")
	require.NoError(t, fresh.LoadFrom(other))
	assert.True(t, fresh.Dirty())
	assert.Equal(t, mgr.Library().Snapshot(), fresh.Library().Snapshot())

	err := fresh.LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.Len(t, fresh.GetAllBooks(), 2)
}

func TestManagerCirculation(t *testing.T) {
	mgr, _ := newManager(t, "lib.json")
	populate(t, mgr)

	r, err := mgr.BorrowBook(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Book borrowed successfully. Transaction ID: 1", r.Message)

	_, err = mgr.BorrowBook(1, 1, 1)
	require.ErrorIs(t, err, ErrBookNotAvailable)

	assert.Equal(t, epoch, mgr.Now())
	assert.Empty(t, mgr.OverdueTransactions())

	r, err = mgr.ReturnBook(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.TransactionID)

	m, err := mgr.GetMember(1)
	require.NoError(t, err)
	assert.Empty(t, m.BorrowedBookIDs)
	assert.Len(t, mgr.SearchBooks("author b"), 1)
	assert.Len(t, mgr.GetAllMembers(), 1)
	assert.Len(t, mgr.GetAllLibrarians(), 1)
}

func TestManagerOverdueUsesLibraryClock(t *testing.T) {
	clock := &fakeClock{t: epoch}
	path := filepath.Join(t.TempDir(), "lib.json")
	mgr, err := NewLibraryManager(path, "Clocked", WithLibraryOptions(WithClock(clock.Now)))
	require.NoError(t, err)
	defer mgr.Close()
	populate(t, mgr)

	_, err = mgr.BorrowBook(1, 1, 1)
	require.NoError(t, err)
	clock.Advance(LoanPeriod + 48*time.Hour)

	overdue := mgr.OverdueTransactions()
	require.Len(t, overdue, 1)
	assert.Equal(t, 2, overdue[0].DaysOverdue(mgr.Now()))
}

func TestManagerLoadFromMissingCreatesNothing(t *testing.T) {
	mgr, _ := newManager(t, "lib.json")
	populate(t, mgr)
	before := mgr.Library().Snapshot()

	dir := t.TempDir()
	for _, file := range []string{"missing.db", "missing.sqlite", "missing.json"} {
		t.Run(file, func(t *testing.T) {
			path := filepath.Join(dir, "sub", file)
			err := mgr.LoadFrom(path)
			require.ErrorIs(t, err, ErrSnapshotNotFound)

			_, statErr := os.Stat(filepath.Join(dir, "sub"))
			assert.True(t, os.IsNotExist(statErr), "load created %s", filepath.Dir(path))
			assert.Equal(t, before, mgr.Library().Snapshot())
		})
	}
}
