package library

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Library owns every book, member, librarian and transaction and is the only
// place they are mutated. Lookups hand out copies.
type Library struct {
	mu  sync.RWMutex
	now func() time.Time

	name         string
	books        map[int64]*Book
	members      map[int64]*Member
	librarians   map[int64]*Librarian
	transactions map[int64]*Transaction
	next         NextIDs
}

// Option configures a Library.
type Option func(*Library)

// WithClock replaces time.Now as the source of borrow and return timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Library) {
		if now != nil {
			l.now = now
		}
	}
}

// Receipt is the outcome of a successful borrow or return.
type Receipt struct {
	TransactionID int64
	Message       string
}

// New creates an empty library with all id counters at 1.
func New(name string, opts ...Option) *Library {
	l := &Library{
		now:          time.Now,
		name:         name,
		books:        make(map[int64]*Book),
		members:      make(map[int64]*Member),
		librarians:   make(map[int64]*Librarian),
		transactions: make(map[int64]*Transaction),
		next:         NextIDs{Book: 1, Member: 1, Librarian: 1, Transaction: 1},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// timestamp is the clock reading in UTC without a monotonic part, so it
// survives a save/load cycle unchanged.
func (l *Library) timestamp() time.Time {
	return l.now().UTC().Round(0)
}

func (l *Library) Name() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.name
}

// NextIDs returns the persisted id counters.
func (l *Library) NextIDs() NextIDs {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.next
}

// ------------------ Registries ------------------

// AddBook registers a book under its caller-supplied id.
func (l *Library) AddBook(b Book) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.books[b.ID]; exists {
		return ErrDuplicateID
	}
	l.books[b.ID] = &b
	return nil
}

// RemoveBook deletes a book. Outstanding loans are not checked: transactions
// and member lists keep referring to the removed id.
func (l *Library) RemoveBook(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.books[id]; !ok {
		return ErrBookNotFound
	}
	delete(l.books, id)
	return nil
}

func (l *Library) AddMember(m Member) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.members[m.ID]; exists {
		return ErrDuplicateID
	}
	c := m.clone()
	l.members[m.ID] = &c
	return nil
}

func (l *Library) AddLibrarian(lib Librarian) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.librarians[lib.ID]; exists {
		return ErrDuplicateID
	}
	l.librarians[lib.ID] = &lib
	return nil
}

func (l *Library) Book(id int64) (Book, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.books[id]
	if !ok {
		return Book{}, ErrBookNotFound
	}
	return *b, nil
}

func (l *Library) Member(id int64) (Member, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.members[id]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return m.clone(), nil
}

func (l *Library) Librarian(id int64) (Librarian, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lib, ok := l.librarians[id]
	if !ok {
		return Librarian{}, ErrLibrarianNotFound
	}
	return *lib, nil
}

func (l *Library) Transaction(id int64) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return t.clone(), nil
}

// ------------------ Circulation ------------------

// BorrowBook lends a book to a member on behalf of a librarian. The first
// failing check wins, in the order member, book, librarian, availability.
func (l *Library) BorrowBook(memberID, bookID, librarianID int64) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	member, ok := l.members[memberID]
	if !ok {
		return Receipt{}, ErrMemberNotFound
	}
	book, ok := l.books[bookID]
	if !ok {
		return Receipt{}, ErrBookNotFound
	}
	if _, ok := l.librarians[librarianID]; !ok {
		return Receipt{}, ErrLibrarianNotFound
	}
	if !book.Available {
		return Receipt{}, ErrBookNotAvailable
	}

	id := l.next.Transaction
	for l.transactions[id] != nil {
		id++
	}
	l.next.Transaction = id + 1
	tx := NewTransaction(id, bookID, memberID, librarianID, l.timestamp())

	book.Available = false
	member.borrow(bookID)
	l.transactions[id] = &tx

	return Receipt{
		TransactionID: id,
		Message:       fmt.Sprintf("Book borrowed successfully. Transaction ID: %d", id),
	}, nil
}

// ReturnBook closes the open loan of bookID held by memberID.
func (l *Library) ReturnBook(memberID, bookID int64) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	member, ok := l.members[memberID]
	if !ok {
		return Receipt{}, ErrMemberNotFound
	}
	book, ok := l.books[bookID]
	if !ok {
		return Receipt{}, ErrBookNotFound
	}

	tx := l.openTransactionLocked(memberID, bookID)
	if tx == nil {
		return Receipt{}, ErrNoActiveTransaction
	}

	tx.markReturned(l.timestamp())
	book.Available = true
	member.giveBack(bookID)

	return Receipt{
		TransactionID: tx.ID,
		Message:       fmt.Sprintf("Book returned successfully. Transaction ID: %d", tx.ID),
	}, nil
}

// openTransactionLocked scans transactions in id order and returns the first
// unreturned one for the pair.
func (l *Library) openTransactionLocked(memberID, bookID int64) *Transaction {
	for _, id := range sortedKeys(l.transactions) {
		tx := l.transactions[id]
		if tx.BookID == bookID && tx.MemberID == memberID && !tx.IsReturned {
			return tx
		}
	}
	return nil
}

// ------------------ Snapshots ------------------

// Snapshot returns a deep copy of the whole library, each collection ordered by id.
func (l *Library) Snapshot() *LibraryData {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data := &LibraryData{
		Name:         l.name,
		Books:        make([]Book, 0, len(l.books)),
		Members:      make([]Member, 0, len(l.members)),
		Librarians:   make([]Librarian, 0, len(l.librarians)),
		Transactions: make([]Transaction, 0, len(l.transactions)),
		NextIDs:      l.next,
	}
	for _, id := range sortedKeys(l.books) {
		data.Books = append(data.Books, *l.books[id])
	}
	for _, id := range sortedKeys(l.members) {
		data.Members = append(data.Members, l.members[id].clone())
	}
	for _, id := range sortedKeys(l.librarians) {
		data.Librarians = append(data.Librarians, *l.librarians[id])
	}
	for _, id := range sortedKeys(l.transactions) {
		data.Transactions = append(data.Transactions, l.transactions[id].clone())
	}
	return data
}

// Restore replaces every registry and counter with the contents of data. When
// data is invalid nothing is changed.
func (l *Library) Restore(data *LibraryData) error {
	if data == nil {
		return fmt.Errorf("%w: empty document", ErrMalformedSnapshot)
	}
	if err := validate(data); err != nil {
		return err
	}

	books := make(map[int64]*Book, len(data.Books))
	for _, b := range data.Books {
		b := b
		books[b.ID] = &b
	}
	members := make(map[int64]*Member, len(data.Members))
	for _, m := range data.Members {
		c := m.clone()
		members[m.ID] = &c
	}
	librarians := make(map[int64]*Librarian, len(data.Librarians))
	for _, lib := range data.Librarians {
		lib := lib
		librarians[lib.ID] = &lib
	}
	transactions := make(map[int64]*Transaction, len(data.Transactions))
	for _, t := range data.Transactions {
		c := t.clone()
		transactions[t.ID] = &c
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.name = data.Name
	l.books = books
	l.members = members
	l.librarians = librarians
	l.transactions = transactions
	l.next = withDefaultIDs(data.NextIDs)
	return nil
}

// validate rejects documents that repeat an id within one collection.
func validate(data *LibraryData) error {
	check := func(kind string, ids []int64) error {
		seen := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: %s id %d appears twice", ErrMalformedSnapshot, kind, id)
			}
			seen[id] = struct{}{}
		}
		return nil
	}

	ids := make([]int64, 0, len(data.Books))
	for _, b := range data.Books {
		ids = append(ids, b.ID)
	}
	if err := check("book", ids); err != nil {
		return err
	}
	ids = ids[:0]
	for _, m := range data.Members {
		ids = append(ids, m.ID)
	}
	if err := check("member", ids); err != nil {
		return err
	}
	ids = ids[:0]
	for _, lib := range data.Librarians {
		ids = append(ids, lib.ID)
	}
	if err := check("librarian", ids); err != nil {
		return err
	}
	ids = ids[:0]
	for _, t := range data.Transactions {
		ids = append(ids, t.ID)
	}
	return check("transaction", ids)
}

func withDefaultIDs(n NextIDs) NextIDs {
	if n.Book <= 0 {
		n.Book = 1
	}
	if n.Member <= 0 {
		n.Member = 1
	}
	if n.Librarian <= 0 {
		n.Librarian = 1
	}
	if n.Transaction <= 0 {
		n.Transaction = 1
	}
	return n
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
