package library

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	l, clock := newTestLibrary(t)
	seedLibrary(t, l)
	_, err := l.BorrowBook(1, 1, 1)
	require.NoError(t, err)
	clock.Advance(90 * time.Minute)
	_, err = l.BorrowBook(2, 2, 1)
	require.NoError(t, err)
	clock.Advance(2*time.Hour + 123*time.Nanosecond)
	_, err = l.ReturnBook(1, 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "library_data.json")
	require.NoError(t, l.SaveFile(path))

	loaded := New("placeholder")
	require.NoError(t, loaded.LoadFile(path))
	assert.Equal(t, l.Snapshot(), loaded.Snapshot())
	assert.Equal(t, "Test Library", loaded.Name())

	// the loaded copy keeps lending from the persisted counter
	r, err := loaded.BorrowBook(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.TransactionID)
}

func TestEncodeLayout(t *testing.T) {
	l, _ := newTestLibrary(t)
	seedLibrary(t, l)
	_, err := l.BorrowBook(1, 1, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, l.Snapshot()))
	out := buf.String()
	for _, key := range []string{
		`"name": "Test Library"`,
		`"book_id": 1`,
		`"publication_year": 2023`,
		`"borrowed_books": [`,
		`"librarian_id": 1`,
		`"borrow_date": "2024-03-01T10:00:00Z"`,
		`"due_date": "2024-03-15T10:00:00Z"`,
		`"return_date": null`,
		`"is_returned": false`,
		`"next_ids": {`,
		`"transaction": 2`,
	} {
		assert.Contains(t, out, key)
	}
}

// A document in the layout written by the first version of the tool:
// zone-less timestamps, no next_ids and an is_returned flag that disagrees
// with return_date.
const legacyDocument = `{
  "name": "City Central Library",
  "books": [
    {"book_id": 1, "title": "The Great Gatsby", "author": "F. Scott Fitzgerald", "isbn": "978-0-7432-7356-5", "publication_year": 1925, "available": false},
    {"book_id": 2, "title": "1984", "author": "George Orwell", "isbn": "978-0-452-28423-4", "publication_year": 1949, "available": true}
  ],
  "members": [
    {"member_id": 1, "name": "John Doe", "email": "john@email.com", "phone": "555-0101", "borrowed_books": [1]}
  ],
  "librarians": [
    {"librarian_id": 1, "name": "Alice Johnson", "email": "alice@library.com"}
  ],
  "transactions": [
    {"transaction_id": 1, "book_id": 2, "member_id": 1, "librarian_id": 1,
     "borrow_date": "2024-01-02T09:30:00.123456", "due_date": "2024-01-16T09:30:00.123456",
     "return_date": "2024-01-05T11:00:00", "is_returned": false},
    {"transaction_id": 2, "book_id": 1, "member_id": 1, "librarian_id": 1,
     "borrow_date": "2024-02-01T08:00:00", "due_date": "2024-02-15T08:00:00",
     "return_date": null, "is_returned": true}
  ]
}`

func TestDecodeLegacyDocument(t *testing.T) {
	data, err := Decode(strings.NewReader(legacyDocument))
	require.NoError(t, err)

	assert.Equal(t, NextIDs{Book: 1, Member: 1, Librarian: 1, Transaction: 1}, data.NextIDs)
	require.Len(t, data.Transactions, 2)

	first := data.Transactions[0]
	assert.Equal(t, time.Date(2024, time.January, 2, 9, 30, 0, 123456000, time.UTC), first.BorrowDate)
	require.NotNil(t, first.ReturnDate)
	assert.True(t, first.IsReturned)

	second := data.Transactions[1]
	assert.Nil(t, second.ReturnDate)
	assert.False(t, second.IsReturned)

	l := New("x")
	require.NoError(t, l.Restore(data))
	r, err := l.ReturnBook(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.TransactionID)

	// counter at 1 collides with existing ids and is skipped past
	r, err = l.BorrowBook(1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.TransactionID)
}

func TestDecodeEmptyCollections(t *testing.T) {
	data, err := Decode(strings.NewReader(`{"name": "Empty", "books": [], "librarians": [], "transactions": [],
		"members": [{"member_id": 4, "name": "No List"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []Book{}, data.Books)
	assert.Equal(t, []int64{}, data.Members[0].BorrowedBookIDs)
	assert.Equal(t, []Librarian{}, data.Librarians)
	assert.Equal(t, []Transaction{}, data.Transactions)
	assert.Equal(t, NextIDs{Book: 1, Member: 1, Librarian: 1, Transaction: 1}, data.NextIDs)
}

func TestDecodeRejectsIncompleteDocuments(t *testing.T) {
	const complete = `"name": "x", "books": [], "members": [], "librarians": [], "transactions": []`
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"null", `null`, `missing "name"`},
		{"empty object", `{}`, `missing "name"`},
		{"unrelated object", `{"unrelated": true}`, `missing "name"`},
		{"no transactions", `{"name": "x", "books": [], "members": [], "librarians": []}`, `missing "transactions"`},
		{"null books", `{"name": "x", "books": null, "members": [], "librarians": [], "transactions": []}`, `missing "books"`},
		{"array", `[]`, ""},
		{"trailing value", `{` + complete + `} {}`, ""},
		{"book without id", `{"name": "x", "books": [{"title": "No Id"}], "members": [], "librarians": [], "transactions": []}`, "book #0 has no book_id"},
		{"null member id", `{"name": "x", "books": [], "members": [{"member_id": null}], "librarians": [], "transactions": []}`, "member #0 has no member_id"},
		{"librarian not an object", `{"name": "x", "books": [], "members": [], "librarians": [7], "transactions": []}`, "librarian #0"},
		{"null transaction", `{"name": "x", "books": [], "members": [], "librarians": [], "transactions": [null]}`, "transaction #0 has no transaction_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, ErrMalformedSnapshot)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	_, err := Decode(strings.NewReader(`{` + complete + `}` + "\n"))
	require.NoError(t, err)
}

func TestFileStoreLogsReturnFlagRepairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte(legacyDocument), 0o644))

	var logs bytes.Buffer
	store := NewFileStore(path, slog.New(slog.NewTextHandler(&logs, nil)))
	data, err := store.Load()
	require.NoError(t, err)
	require.Len(t, data.Transactions, 2)

	out := logs.String()
	assert.Equal(t, 2, strings.Count(out, "is_returned disagrees with return_date"))
	assert.Contains(t, out, "transaction_id=2 is_returned=true returned=false")

	logs.Reset()
	require.NoError(t, store.Save(data))
	_, err = store.Load()
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "disagrees")
}

func TestLoadFileFailuresKeepState(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", filepath.Join(dir, "nope.json"), ErrSnapshotNotFound},
		{"not json", write("garbage.json", "this is not json"), ErrMalformedSnapshot},
		{"truncated", write("truncated.json", `{"name": "Half", "books": [`), ErrMalformedSnapshot},
		{"null document", write("null.json", "null"), ErrMalformedSnapshot},
		{"empty object", write("empty.json", "{}"), ErrMalformedSnapshot},
		{"unrelated object", write("unrelated.json", `{"unrelated": true}`), ErrMalformedSnapshot},
		{"bad timestamp", write("badtime.json", `{"name": "x", "books": [], "members": [], "librarians": [],
			"transactions": [{"transaction_id": 1, "borrow_date": "yesterday", "due_date": "2024-01-01T00:00:00Z"}]}`), ErrMalformedSnapshot},
		{"repeated book id", write("dup.json", `{"name": "x", "books": [{"book_id": 1}, {"book_id": 1}],
			"members": [], "librarians": [], "transactions": []}`), ErrMalformedSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLibrary(t)
			seedLibrary(t, l)
			before := l.Snapshot()

			err := l.LoadFile(tt.path)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, l.Snapshot())
		})
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2024, time.May, 6, 7, 8, 9, 0, time.UTC)
	for _, s := range []string{
		"2024-05-06T07:08:09Z",
		"2024-05-06T09:08:09+02:00",
		"2024-05-06T07:08:09",
		"2024-05-06 07:08:09",
	} {
		got, err := parseTimestamp(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := parseTimestamp("06/05/2024")
	require.Error(t, err)
}
