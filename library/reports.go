package library

import (
	"strings"
	"time"
)

// Stats summarises the library for the status screen.
type Stats struct {
	Name             string
	TotalBooks       int
	AvailableBooks   int
	BorrowedBooks    int
	Members          int
	Librarians       int
	Transactions     int
	OpenTransactions int
}

func (l *Library) Books() []Book {
	return l.filterBooks(func(*Book) bool { return true })
}

func (l *Library) AvailableBooks() []Book {
	return l.filterBooks(func(b *Book) bool { return b.Available })
}

func (l *Library) BorrowedBooks() []Book {
	return l.filterBooks(func(b *Book) bool { return !b.Available })
}

// SearchBooks matches query case-insensitively as a substring of the title,
// author or ISBN.
func (l *Library) SearchBooks(query string) []Book {
	q := strings.ToLower(query)
	return l.filterBooks(func(b *Book) bool {
		return strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.ISBN), q)
	})
}

func (l *Library) filterBooks(keep func(*Book) bool) []Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Book, 0, len(l.books))
	for _, id := range sortedKeys(l.books) {
		if b := l.books[id]; keep(b) {
			out = append(out, *b)
		}
	}
	return out
}

func (l *Library) Members() []Member {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Member, 0, len(l.members))
	for _, id := range sortedKeys(l.members) {
		out = append(out, l.members[id].clone())
	}
	return out
}

func (l *Library) Librarians() []Librarian {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Librarian, 0, len(l.librarians))
	for _, id := range sortedKeys(l.librarians) {
		out = append(out, *l.librarians[id])
	}
	return out
}

// MemberBorrowedBooks resolves the member's borrowed ids against the catalogue.
// Ids of books removed since the loan are skipped. An unknown member has none.
func (l *Library) MemberBorrowedBooks(memberID int64) []Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.members[memberID]
	if !ok {
		return []Book{}
	}
	out := make([]Book, 0, len(m.BorrowedBookIDs))
	for _, id := range m.BorrowedBookIDs {
		if b, ok := l.books[id]; ok {
			out = append(out, *b)
		}
	}
	return out
}

func (l *Library) Transactions() []Transaction {
	return l.filterTransactions(func(*Transaction) bool { return true })
}

func (l *Library) OpenTransactions() []Transaction {
	return l.filterTransactions(func(t *Transaction) bool { return !t.IsReturned })
}

// OverdueTransactions lists loans that are overdue as of now, returned or not.
func (l *Library) OverdueTransactions(now time.Time) []Transaction {
	return l.filterTransactions(func(t *Transaction) bool { return t.IsOverdue(now) })
}

func (l *Library) filterTransactions(keep func(*Transaction) bool) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, 0, len(l.transactions))
	for _, id := range sortedKeys(l.transactions) {
		if t := l.transactions[id]; keep(t) {
			out = append(out, t.clone())
		}
	}
	return out
}

func (l *Library) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Stats{
		Name:         l.name,
		TotalBooks:   len(l.books),
		Members:      len(l.members),
		Librarians:   len(l.librarians),
		Transactions: len(l.transactions),
	}
	for _, b := range l.books {
		if b.Available {
			s.AvailableBooks++
		} else {
			s.BorrowedBooks++
		}
	}
	for _, t := range l.transactions {
		if !t.IsReturned {
			s.OpenTransactions++
		}
	}
	return s
}
