package library

import (
	"errors"
	"fmt"
	"time"
)

// LibraryManager is a thin façade binding a Library to the Store it is
// persisted in, keeping CLI code simple.
type LibraryManager struct {
	lib    *Library
	store  Store
	logger Logger
	dirty  bool
}

// ManagerOption configures a LibraryManager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	logger  Logger
	libOpts []Option
}

// WithLogger sets the logger used by the manager and its store.
func WithLogger(logger Logger) ManagerOption {
	return func(c *managerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLibraryOptions passes options through to the underlying Library.
func WithLibraryOptions(opts ...Option) ManagerOption {
	return func(c *managerConfig) { c.libOpts = append(c.libOpts, opts...) }
}

// NewLibraryManager opens the store at path and loads the snapshot it holds.
// A store that has never been saved to yields an empty library called name.
func NewLibraryManager(path, name string, opts ...ManagerOption) (*LibraryManager, error) {
	cfg := managerConfig{logger: discardLogger}
	for _, opt := range opts {
		opt(&cfg)
	}

	store, err := OpenStore(path, cfg.logger)
	if err != nil {
		return nil, err
	}
	lm := &LibraryManager{
		lib:    New(name, cfg.libOpts...),
		store:  store,
		logger: cfg.logger,
	}

	data, err := store.Load()
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		lm.logger.Info("starting empty library", "path", path, "name", name)
	case err != nil:
		store.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	default:
		if err := lm.lib.Restore(data); err != nil {
			store.Close()
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return lm, nil
}

// Close closes the underlying store without saving.
func (lm *LibraryManager) Close() error { return lm.store.Close() }

// Library exposes the aggregate for read-only reporting.
func (lm *LibraryManager) Library() *Library { return lm.lib }

// Dirty reports whether state changed since the last save or load.
func (lm *LibraryManager) Dirty() bool { return lm.dirty }

// ------------------ Persistence ------------------

func (lm *LibraryManager) Save() error {
	if err := lm.store.Save(lm.lib.Snapshot()); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	lm.dirty = false
	return nil
}

// Reload replaces the in-memory state with the stored snapshot. On failure
// the in-memory state is kept.
func (lm *LibraryManager) Reload() error {
	data, err := lm.store.Load()
	if err != nil {
		lm.logger.Warn("reload failed", "err", err)
		return err
	}
	if err := lm.lib.Restore(data); err != nil {
		lm.logger.Warn("reload failed", "err", err)
		return err
	}
	lm.dirty = false
	return nil
}

// SaveAs writes the current state to another store without switching to it.
func (lm *LibraryManager) SaveAs(path string) error {
	store, err := OpenStore(path, lm.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(lm.lib.Snapshot())
}

// LoadFrom replaces the in-memory state with the snapshot stored at path.
// Nothing is created at path when it does not exist.
func (lm *LibraryManager) LoadFrom(path string) error {
	store, err := openExistingStore(path, lm.logger)
	if err != nil {
		lm.logger.Warn("load failed", "path", path, "err", err)
		return err
	}
	defer store.Close()
	data, err := store.Load()
	if err != nil {
		lm.logger.Warn("load failed", "path", path, "err", err)
		return err
	}
	if err := lm.lib.Restore(data); err != nil {
		lm.logger.Warn("load failed", "path", path, "err", err)
		return err
	}
	lm.dirty = true
	return nil
}

// ------------------ Book helpers ------------------

func (lm *LibraryManager) AddBook(b Book) error {
	if err := lm.lib.AddBook(b); err != nil {
		return err
	}
	lm.dirty = true
	lm.logger.Info("book added", "book_id", b.ID, "title", b.Title)
	return nil
}

func (lm *LibraryManager) RemoveBook(id int64) error {
	if err := lm.lib.RemoveBook(id); err != nil {
		return err
	}
	lm.dirty = true
	lm.logger.Info("book removed", "book_id", id)
	return nil
}

func (lm *LibraryManager) GetBook(id int64) (Book, error) { return lm.lib.Book(id) }
func (lm *LibraryManager) GetAllBooks() []Book           { return lm.lib.Books() }

func (lm *LibraryManager) SearchBooks(q string) []Book { return lm.lib.SearchBooks(q) }

// ------------------ Member helpers ------------------

func (lm *LibraryManager) AddMember(m Member) error {
	if err := lm.lib.AddMember(m); err != nil {
		return err
	}
	lm.dirty = true
	lm.logger.Info("member added", "member_id", m.ID, "name", m.Name)
	return nil
}

func (lm *LibraryManager) GetMember(id int64) (Member, error) { return lm.lib.Member(id) }
func (lm *LibraryManager) GetAllMembers() []Member            { return lm.lib.Members() }

// ------------------ Librarian helpers ------------------

func (lm *LibraryManager) AddLibrarian(l Librarian) error {
	if err := lm.lib.AddLibrarian(l); err != nil {
		return err
	}
	lm.dirty = true
	lm.logger.Info("librarian added", "librarian_id", l.ID, "name", l.Name)
	return nil
}

func (lm *LibraryManager) GetAllLibrarians() []Librarian { return lm.lib.Librarians() }

// ------------------ Circulation ------------------

func (lm *LibraryManager) BorrowBook(memberID, bookID, librarianID int64) (Receipt, error) {
	r, err := lm.lib.BorrowBook(memberID, bookID, librarianID)
	if err != nil {
		lm.logger.Debug("borrow rejected", "member_id", memberID, "book_id", bookID, "librarian_id", librarianID, "reason", err)
		return r, err
	}
	lm.dirty = true
	lm.logger.Info("book borrowed", "transaction_id", r.TransactionID, "member_id", memberID, "book_id", bookID)
	return r, nil
}

func (lm *LibraryManager) ReturnBook(memberID, bookID int64) (Receipt, error) {
	r, err := lm.lib.ReturnBook(memberID, bookID)
	if err != nil {
		lm.logger.Debug("return rejected", "member_id", memberID, "book_id", bookID, "reason", err)
		return r, err
	}
	lm.dirty = true
	lm.logger.Info("book returned", "transaction_id", r.TransactionID, "member_id", memberID, "book_id", bookID)
	return r, nil
}

// OverdueTransactions lists loans overdue as of the library clock.
func (lm *LibraryManager) OverdueTransactions() []Transaction {
	return lm.lib.OverdueTransactions(lm.Now())
}

// Now reads the library clock.
func (lm *LibraryManager) Now() time.Time { return lm.lib.timestamp() }
