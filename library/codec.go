package library

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Layouts accepted when reading timestamps. Files written by older versions
// of the tool carry ISO-8601 timestamps without a zone; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

type transactionRecord struct {
	ID          int64   `json:"transaction_id"`
	BookID      int64   `json:"book_id"`
	MemberID    int64   `json:"member_id"`
	LibrarianID int64   `json:"librarian_id"`
	BorrowDate  string  `json:"borrow_date"`
	DueDate     string  `json:"due_date"`
	ReturnDate  *string `json:"return_date"`
	IsReturned  bool    `json:"is_returned"`
}

// UnmarshalJSON reads a transaction, deriving IsReturned from the presence of
// a return date.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var rec transactionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	borrowed, err := parseTimestamp(rec.BorrowDate)
	if err != nil {
		return fmt.Errorf("transaction %d borrow_date: %w", rec.ID, err)
	}
	due, err := parseTimestamp(rec.DueDate)
	if err != nil {
		return fmt.Errorf("transaction %d due_date: %w", rec.ID, err)
	}
	*t = Transaction{
		ID:          rec.ID,
		BookID:      rec.BookID,
		MemberID:    rec.MemberID,
		LibrarianID: rec.LibrarianID,
		BorrowDate:  borrowed,
		DueDate:     due,
	}
	if rec.ReturnDate != nil && *rec.ReturnDate != "" {
		returned, err := parseTimestamp(*rec.ReturnDate)
		if err != nil {
			return fmt.Errorf("transaction %d return_date: %w", rec.ID, err)
		}
		t.ReturnDate = &returned
		t.IsReturned = true
	}
	return nil
}

// Encode writes data as an indented JSON document.
func Encode(w io.Writer, data *LibraryData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Decode parses a JSON document. A document that is not a single JSON object
// carrying name, books, members, librarians and transactions, or whose
// entities lack their id key, is reported as ErrMalformedSnapshot, as are
// repeated ids. Absent id counters default to 1.
func Decode(r io.Reader) (*LibraryData, error) {
	return decode(r, discardLogger)
}

// documentRecord tells a missing key apart from an empty collection.
type documentRecord struct {
	Name         *string                `json:"name"`
	Books        *[]jsoniter.RawMessage `json:"books"`
	Members      *[]jsoniter.RawMessage `json:"members"`
	Librarians   *[]jsoniter.RawMessage `json:"librarians"`
	Transactions *[]jsoniter.RawMessage `json:"transactions"`
	NextIDs      NextIDs                `json:"next_ids"`
}

func decode(r io.Reader, logger Logger) (*LibraryData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc documentRecord
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	for _, field := range []struct {
		key     string
		present bool
	}{
		{"name", doc.Name != nil},
		{"books", doc.Books != nil},
		{"members", doc.Members != nil},
		{"librarians", doc.Librarians != nil},
		{"transactions", doc.Transactions != nil},
	} {
		if !field.present {
			return nil, fmt.Errorf("%w: missing %q", ErrMalformedSnapshot, field.key)
		}
	}

	data := LibraryData{Name: *doc.Name, NextIDs: withDefaultIDs(doc.NextIDs)}
	if data.Books, err = decodeEntities[Book]("book", "book_id", *doc.Books, nil); err != nil {
		return nil, err
	}
	if data.Members, err = decodeEntities[Member]("member", "member_id", *doc.Members, nil); err != nil {
		return nil, err
	}
	for i := range data.Members {
		if data.Members[i].BorrowedBookIDs == nil {
			data.Members[i].BorrowedBookIDs = []int64{}
		}
	}
	if data.Librarians, err = decodeEntities[Librarian]("librarian", "librarian_id", *doc.Librarians, nil); err != nil {
		return nil, err
	}
	data.Transactions, err = decodeEntities("transaction", "transaction_id", *doc.Transactions,
		func(t Transaction, fields map[string]jsoniter.RawMessage) {
			flag, ok := fields["is_returned"]
			var flagged bool
			if ok && json.Unmarshal(flag, &flagged) == nil && flagged != t.IsReturned {
				logger.Warn("is_returned disagrees with return_date, using return_date",
					"transaction_id", t.ID, "is_returned", flagged, "returned", t.IsReturned)
			}
		})
	if err != nil {
		return nil, err
	}

	if err := validate(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// decodeEntities unmarshals each element of a collection, rejecting elements
// that are not objects or have no usable idKey. check, when set, sees every
// decoded value with its raw fields.
func decodeEntities[T any](kind, idKey string, raw []jsoniter.RawMessage, check func(T, map[string]jsoniter.RawMessage)) ([]T, error) {
	out := make([]T, 0, len(raw))
	for i, elem := range raw {
		var fields map[string]jsoniter.RawMessage
		if err := json.Unmarshal(elem, &fields); err != nil {
			return nil, fmt.Errorf("%w: %s #%d: %v", ErrMalformedSnapshot, kind, i, err)
		}
		if id, ok := fields[idKey]; !ok || string(id) == "null" {
			return nil, fmt.Errorf("%w: %s #%d has no %s", ErrMalformedSnapshot, kind, i, idKey)
		}
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			return nil, fmt.Errorf("%w: %s #%d: %v", ErrMalformedSnapshot, kind, i, err)
		}
		if check != nil {
			check(v, fields)
		}
		out = append(out, v)
	}
	return out, nil
}

// SaveFile overwrites path with the library's current state.
func (l *Library) SaveFile(path string) error {
	return writeSnapshotFile(path, l.Snapshot())
}

func writeSnapshotFile(path string, data *LibraryData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// LoadFile replaces the library's state with the document at path. On any
// error the current state is kept.
func (l *Library) LoadFile(path string) error {
	data, err := readSnapshotFile(path, discardLogger)
	if err != nil {
		return err
	}
	return l.Restore(data)
}

func readSnapshotFile(path string, logger Logger) (*LibraryData, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f, logger)
}
