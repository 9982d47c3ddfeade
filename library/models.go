package library

import (
	"fmt"
	"time"
)

// LoanPeriod is how long a member may keep a book before it is overdue.
const LoanPeriod = 14 * 24 * time.Hour

// Book represents catalogue metadata and current availability of a book.
type Book struct {
	ID              int64  `json:"book_id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	PublicationYear int    `json:"publication_year"`
	Available       bool   `json:"available"`
}

func (b Book) String() string {
	status := "Available"
	if !b.Available {
		status = "Borrowed"
	}
	return fmt.Sprintf("Book ID: %d, Title: %s, Author: %s, ISBN: %s, Year: %d, Status: %s",
		b.ID, b.Title, b.Author, b.ISBN, b.PublicationYear, status)
}

// Member represents a registered library member.
type Member struct {
	ID              int64   `json:"member_id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	BorrowedBookIDs []int64 `json:"borrowed_books"`
}

// HasBorrowed reports whether bookID is currently lent to the member.
func (m *Member) HasBorrowed(bookID int64) bool {
	for _, id := range m.BorrowedBookIDs {
		if id == bookID {
			return true
		}
	}
	return false
}

func (m *Member) BorrowedCount() int { return len(m.BorrowedBookIDs) }

// borrow appends bookID unless it is already present.
func (m *Member) borrow(bookID int64) bool {
	if m.HasBorrowed(bookID) {
		return false
	}
	m.BorrowedBookIDs = append(m.BorrowedBookIDs, bookID)
	return true
}

// giveBack removes bookID while keeping the order of the remaining ids.
func (m *Member) giveBack(bookID int64) bool {
	for i, id := range m.BorrowedBookIDs {
		if id == bookID {
			m.BorrowedBookIDs = append(m.BorrowedBookIDs[:i], m.BorrowedBookIDs[i+1:]...)
			return true
		}
	}
	return false
}

func (m Member) clone() Member {
	m.BorrowedBookIDs = dedupeIDs(m.BorrowedBookIDs)
	return m
}

func (m Member) String() string {
	return fmt.Sprintf("Member ID: %d, Name: %s, Email: %s, Phone: %s, Borrowed Books: %d",
		m.ID, m.Name, m.Email, m.Phone, len(m.BorrowedBookIDs))
}

// Librarian is the staff member recorded on a loan. It carries no state beyond identity.
type Librarian struct {
	ID    int64  `json:"librarian_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (l Librarian) String() string {
	return fmt.Sprintf("Librarian ID: %d, Name: %s, Email: %s", l.ID, l.Name, l.Email)
}

// Transaction records one loan of a book to a member. Only ReturnDate and
// IsReturned ever change, and only once.
type Transaction struct {
	ID          int64      `json:"transaction_id"`
	BookID      int64      `json:"book_id"`
	MemberID    int64      `json:"member_id"`
	LibrarianID int64      `json:"librarian_id"`
	BorrowDate  time.Time  `json:"borrow_date"`
	DueDate     time.Time  `json:"due_date"`
	ReturnDate  *time.Time `json:"return_date"`
	IsReturned  bool       `json:"is_returned"`
}

// NewTransaction opens a loan due LoanPeriod after borrowDate.
func NewTransaction(id, bookID, memberID, librarianID int64, borrowDate time.Time) Transaction {
	return Transaction{
		ID:          id,
		BookID:      bookID,
		MemberID:    memberID,
		LibrarianID: librarianID,
		BorrowDate:  borrowDate,
		DueDate:     borrowDate.Add(LoanPeriod),
	}
}

func (t *Transaction) markReturned(at time.Time) {
	if t.IsReturned {
		return
	}
	t.ReturnDate = &at
	t.IsReturned = true
}

// asOf is the instant overdue checks compare against the due date.
func (t Transaction) asOf(now time.Time) time.Time {
	if t.IsReturned && t.ReturnDate != nil {
		return *t.ReturnDate
	}
	return now
}

// IsOverdue compares the return date (closed loans) or now (open loans) with the due date.
func (t Transaction) IsOverdue(now time.Time) bool {
	return t.asOf(now).After(t.DueDate)
}

// DaysOverdue counts whole days past the due date, never negative.
func (t Transaction) DaysOverdue(now time.Time) int {
	late := t.asOf(now).Sub(t.DueDate)
	if late <= 0 {
		return 0
	}
	return int(late / (24 * time.Hour))
}

func (t Transaction) Status() string {
	if t.IsReturned {
		return "Returned"
	}
	return "Active"
}

func (t Transaction) clone() Transaction {
	if t.ReturnDate != nil {
		rd := *t.ReturnDate
		t.ReturnDate = &rd
	}
	return t
}

func (t Transaction) String() string {
	returned := "Not returned"
	if t.ReturnDate != nil {
		returned = t.ReturnDate.Format(time.DateOnly)
	}
	return fmt.Sprintf("Transaction ID: %d, Book: %d, Member: %d, Status: %s, Borrowed: %s, Due: %s, Returned: %s",
		t.ID, t.BookID, t.MemberID, t.Status(),
		t.BorrowDate.Format(time.DateOnly), t.DueDate.Format(time.DateOnly), returned)
}

// NextIDs holds the id counters persisted with a snapshot. Only Transaction
// is consulted by the library; the others are carried as metadata.
type NextIDs struct {
	Book        int64 `json:"book"`
	Member      int64 `json:"member"`
	Librarian   int64 `json:"librarian"`
	Transaction int64 `json:"transaction"`
}

// LibraryData represents the complete library state for persistence.
type LibraryData struct {
	Name         string        `json:"name"`
	Books        []Book        `json:"books"`
	Members      []Member      `json:"members"`
	Librarians   []Librarian   `json:"librarians"`
	Transactions []Transaction `json:"transactions"`
	NextIDs      NextIDs       `json:"next_ids"`
}

func dedupeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
