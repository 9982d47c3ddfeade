package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalogue(t *testing.T, l *Library) {
	t.Helper()
	books := []Book{
		{ID: 1, Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "978-0-7432-7356-5", PublicationYear: 1925, Available: true},
		{ID: 2, Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "978-0-06-112008-4", PublicationYear: 1960, Available: true},
		{ID: 3, Title: "1984", Author: "George Orwell", ISBN: "978-0-452-28423-4", PublicationYear: 1949, Available: true},
		{ID: 4, Title: "Pride and Prejudice", Author: "Jane Austen", ISBN: "978-0-14-143951-8", PublicationYear: 1813, Available: true},
		{ID: 5, Title: "The Catcher in the Rye", Author: "J.D. Salinger", ISBN: "978-0-316-76948-0", PublicationYear: 1951, Available: true},
	}
	for _, b := range books {
		require.NoError(t, l.AddBook(b))
	}
}

func bookIDs(books []Book) []int64 {
	ids := make([]int64, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestSearchBooks(t *testing.T) {
	l, _ := newTestLibrary(t)
	sampleCatalogue(t, l)

	tests := []struct {
		query string
		want  []int64
	}{
		{"the", []int64{1, 5}},
		{"THE", []int64{1, 5}},
		{"orwell", []int64{3}},
		{"0-06-112", []int64{2}},
		{"", []int64{1, 2, 3, 4, 5}},
		{"dickens", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, bookIDs(l.SearchBooks(tt.query)))
		})
	}
}

func TestAvailabilityQueries(t *testing.T) {
	l, _ := newTestLibrary(t)
	sampleCatalogue(t, l)
	require.NoError(t, l.AddMember(Member{ID: 1, Name: "John Doe"}))
	require.NoError(t, l.AddLibrarian(Librarian{ID: 1, Name: "Alice Johnson"}))

	_, err := l.BorrowBook(1, 4, 1)
	require.NoError(t, err)
	_, err = l.BorrowBook(1, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, bookIDs(l.Books()))
	assert.Equal(t, []int64{1, 3, 5}, bookIDs(l.AvailableBooks()))
	assert.Equal(t, []int64{2, 4}, bookIDs(l.BorrowedBooks()))
	// borrow order, not id order
	assert.Equal(t, []int64{4, 2}, bookIDs(l.MemberBorrowedBooks(1)))
	assert.Equal(t, []Book{}, l.MemberBorrowedBooks(99))
}

func TestOverdueTransactions(t *testing.T) {
	l, clock := newTestLibrary(t)
	sampleCatalogue(t, l)
	require.NoError(t, l.AddMember(Member{ID: 1, Name: "John Doe"}))
	require.NoError(t, l.AddLibrarian(Librarian{ID: 1, Name: "Alice Johnson"}))

	_, err := l.BorrowBook(1, 1, 1) // returned late
	require.NoError(t, err)
	_, err = l.BorrowBook(1, 2, 1) // returned on time
	require.NoError(t, err)
	_, err = l.BorrowBook(1, 3, 1) // still out
	require.NoError(t, err)

	clock.Advance(5 * 24 * time.Hour)
	_, err = l.ReturnBook(1, 2)
	require.NoError(t, err)

	clock.Advance(15 * 24 * time.Hour)
	_, err = l.ReturnBook(1, 1)
	require.NoError(t, err)

	now := clock.Now()
	overdue := l.OverdueTransactions(now)
	require.Len(t, overdue, 2)
	assert.Equal(t, int64(1), overdue[0].ID)
	assert.Equal(t, int64(3), overdue[1].ID)
	assert.Equal(t, 6, overdue[0].DaysOverdue(now))
	assert.Equal(t, 6, overdue[1].DaysOverdue(now))

	// a late return stays overdue; the open loan is not yet late at the due date
	atDue := l.OverdueTransactions(epoch.Add(14 * 24 * time.Hour))
	require.Len(t, atDue, 1)
	assert.Equal(t, int64(1), atDue[0].ID)
}

func TestStats(t *testing.T) {
	l, _ := newTestLibrary(t)
	sampleCatalogue(t, l)
	require.NoError(t, l.AddMember(Member{ID: 1, Name: "John Doe"}))
	require.NoError(t, l.AddMember(Member{ID: 2, Name: "Jane Smith"}))
	require.NoError(t, l.AddLibrarian(Librarian{ID: 1, Name: "Alice Johnson"}))

	_, err := l.BorrowBook(1, 1, 1)
	require.NoError(t, err)
	_, err = l.BorrowBook(2, 2, 1)
	require.NoError(t, err)
	_, err = l.ReturnBook(2, 2)
	require.NoError(t, err)

	assert.Equal(t, Stats{
		Name:             "Test Library",
		TotalBooks:       5,
		AvailableBooks:   4,
		BorrowedBooks:    1,
		Members:          2,
		Librarians:       1,
		Transactions:     2,
		OpenTransactions: 1,
	}, l.Stats())
}
