package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	dialectSQLite = "sqlite3"
	insertBatch   = 500
)

// Database stores library snapshots in SQLite. Each Save replaces every row.
type Database struct {
	db     *sqlx.DB
	logger Logger

	putMetaStmt *sql.Stmt

	snapshotID string
}

// DatabaseOption configures a Database.
type DatabaseOption func(*Database)

func WithDatabaseLogger(logger Logger) DatabaseOption {
	return func(d *Database) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string, opts ...DatabaseOption) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Foreign keys stay off: transactions may outlive the book they reference.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db, logger: discardLogger}
	for _, opt := range opts {
		opt(database)
	}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.putMetaStmt != nil {
		d.putMetaStmt.Close()
	}
	return d.db.Close()
}

// SnapshotID identifies the snapshot last written or read.
func (d *Database) SnapshotID() string { return d.snapshotID }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL,
            publication_year INTEGER NOT NULL,
            available BOOLEAN NOT NULL DEFAULT 1
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            phone TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS member_books (
            member_id INTEGER NOT NULL,
            position INTEGER NOT NULL,
            book_id INTEGER NOT NULL,
            PRIMARY KEY (member_id, position)
        );`,
		`CREATE TABLE IF NOT EXISTS librarians (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id INTEGER PRIMARY KEY,
            book_id INTEGER NOT NULL,
            member_id INTEGER NOT NULL,
            librarian_id INTEGER NOT NULL,
            borrow_date TEXT NOT NULL,
            due_date TEXT NOT NULL,
            return_date TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_open
            ON transactions(book_id, member_id) WHERE return_date IS NULL;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.putMetaStmt, err = d.db.Prepare(`INSERT INTO meta(key,value) VALUES(?,?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Rows
// ---------------------------------------------------------------------------

type bookRow struct {
	ID              int64  `db:"id"`
	Title           string `db:"title"`
	Author          string `db:"author"`
	ISBN            string `db:"isbn"`
	PublicationYear int    `db:"publication_year"`
	Available       bool   `db:"available"`
}

type memberRow struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
	Phone string `db:"phone"`
}

type memberBookRow struct {
	MemberID int64 `db:"member_id"`
	BookID   int64 `db:"book_id"`
}

type librarianRow struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

type transactionRow struct {
	ID          int64          `db:"id"`
	BookID      int64          `db:"book_id"`
	MemberID    int64          `db:"member_id"`
	LibrarianID int64          `db:"librarian_id"`
	BorrowDate  string         `db:"borrow_date"`
	DueDate     string         `db:"due_date"`
	ReturnDate  sql.NullString `db:"return_date"`
}

type metaRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func formatTimestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// ---------------------------------------------------------------------------
// Save / Load
// ---------------------------------------------------------------------------

// Save replaces the stored snapshot with data in one SQL transaction.
func (d *Database) Save(data *LibraryData) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"books", "members", "member_books", "librarians", "transactions"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	books := make([]any, 0, len(data.Books))
	for _, b := range data.Books {
		books = append(books, goqu.Record{
			"id": b.ID, "title": b.Title, "author": b.Author, "isbn": b.ISBN,
			"publication_year": b.PublicationYear, "available": b.Available,
		})
	}
	members := make([]any, 0, len(data.Members))
	var borrowed []any
	for _, m := range data.Members {
		members = append(members, goqu.Record{"id": m.ID, "name": m.Name, "email": m.Email, "phone": m.Phone})
		for pos, bookID := range m.BorrowedBookIDs {
			borrowed = append(borrowed, goqu.Record{"member_id": m.ID, "position": pos, "book_id": bookID})
		}
	}
	librarians := make([]any, 0, len(data.Librarians))
	for _, lib := range data.Librarians {
		librarians = append(librarians, goqu.Record{"id": lib.ID, "name": lib.Name, "email": lib.Email})
	}
	transactions := make([]any, 0, len(data.Transactions))
	for _, t := range data.Transactions {
		var returned any
		if t.ReturnDate != nil {
			returned = formatTimestamp(*t.ReturnDate)
		}
		transactions = append(transactions, goqu.Record{
			"id": t.ID, "book_id": t.BookID, "member_id": t.MemberID, "librarian_id": t.LibrarianID,
			"borrow_date": formatTimestamp(t.BorrowDate), "due_date": formatTimestamp(t.DueDate),
			"return_date": returned,
		})
	}

	for _, batch := range []struct {
		table string
		rows  []any
	}{
		{"books", books},
		{"members", members},
		{"member_books", borrowed},
		{"librarians", librarians},
		{"transactions", transactions},
	} {
		if err := insertRows(tx, batch.table, batch.rows); err != nil {
			return err
		}
	}

	snapshotID := uuid.NewString()
	next := withDefaultIDs(data.NextIDs)
	meta := [][2]string{
		{"name", data.Name},
		{"next_book_id", strconv.FormatInt(next.Book, 10)},
		{"next_member_id", strconv.FormatInt(next.Member, 10)},
		{"next_librarian_id", strconv.FormatInt(next.Librarian, 10)},
		{"next_transaction_id", strconv.FormatInt(next.Transaction, 10)},
		{"snapshot_id", snapshotID},
		{"saved_at", formatTimestamp(time.Now())},
	}
	put := tx.Stmt(d.putMetaStmt)
	for _, kv := range meta {
		if _, err := put.Exec(kv[0], kv[1]); err != nil {
			return fmt.Errorf("write meta %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	d.snapshotID = snapshotID
	d.logger.Info("snapshot saved", "snapshot_id", snapshotID, "books", len(data.Books), "transactions", len(data.Transactions))
	return nil
}

func insertRows(tx *sqlx.Tx, table string, rows []any) error {
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		query, args, err := goqu.Dialect(dialectSQLite).
			Insert(table).
			Rows(rows[start:end]...).
			Prepared(true).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build insert into %s: %w", table, err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return nil
}

// Load reads the stored snapshot. A database that was never saved to yields
// ErrSnapshotNotFound.
func (d *Database) Load() (*LibraryData, error) {
	tx, err := d.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var metaRows []metaRow
	if err := tx.Select(&metaRows, `SELECT key, value FROM meta`); err != nil {
		return nil, err
	}
	meta := make(map[string]string, len(metaRows))
	for _, r := range metaRows {
		meta[r.Key] = r.Value
	}
	snapshotID, ok := meta["snapshot_id"]
	if !ok {
		return nil, ErrSnapshotNotFound
	}

	var (
		books        []bookRow
		members      []memberRow
		memberBooks  []memberBookRow
		librarians   []librarianRow
		transactions []transactionRow
	)
	queries := []struct {
		dest  any
		query string
	}{
		{&books, `SELECT id, title, author, isbn, publication_year, available FROM books ORDER BY id`},
		{&members, `SELECT id, name, email, phone FROM members ORDER BY id`},
		{&memberBooks, `SELECT member_id, book_id FROM member_books ORDER BY member_id, position`},
		{&librarians, `SELECT id, name, email FROM librarians ORDER BY id`},
		{&transactions, `SELECT id, book_id, member_id, librarian_id, borrow_date, due_date, return_date FROM transactions ORDER BY id`},
	}
	for _, q := range queries {
		if err := tx.Select(q.dest, q.query); err != nil {
			return nil, err
		}
	}

	data := &LibraryData{
		Name:         meta["name"],
		Books:        make([]Book, 0, len(books)),
		Members:      make([]Member, 0, len(members)),
		Librarians:   make([]Librarian, 0, len(librarians)),
		Transactions: make([]Transaction, 0, len(transactions)),
	}
	for _, b := range books {
		data.Books = append(data.Books, Book(b))
	}
	borrowed := make(map[int64][]int64)
	for _, mb := range memberBooks {
		borrowed[mb.MemberID] = append(borrowed[mb.MemberID], mb.BookID)
	}
	for _, m := range members {
		ids := borrowed[m.ID]
		if ids == nil {
			ids = []int64{}
		}
		data.Members = append(data.Members, Member{ID: m.ID, Name: m.Name, Email: m.Email, Phone: m.Phone, BorrowedBookIDs: ids})
	}
	for _, lib := range librarians {
		data.Librarians = append(data.Librarians, Librarian(lib))
	}
	for _, r := range transactions {
		t, err := r.transaction()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
		}
		data.Transactions = append(data.Transactions, t)
	}
	data.NextIDs = withDefaultIDs(NextIDs{
		Book:        metaInt(meta, "next_book_id"),
		Member:      metaInt(meta, "next_member_id"),
		Librarian:   metaInt(meta, "next_librarian_id"),
		Transaction: metaInt(meta, "next_transaction_id"),
	})

	d.snapshotID = snapshotID
	d.logger.Debug("snapshot loaded", "snapshot_id", snapshotID, "books", len(data.Books), "transactions", len(data.Transactions))
	return data, nil
}

func (r transactionRow) transaction() (Transaction, error) {
	borrowed, err := parseTimestamp(r.BorrowDate)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %d borrow_date: %w", r.ID, err)
	}
	due, err := parseTimestamp(r.DueDate)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %d due_date: %w", r.ID, err)
	}
	t := Transaction{
		ID:          r.ID,
		BookID:      r.BookID,
		MemberID:    r.MemberID,
		LibrarianID: r.LibrarianID,
		BorrowDate:  borrowed,
		DueDate:     due,
	}
	if r.ReturnDate.Valid {
		returned, err := parseTimestamp(r.ReturnDate.String)
		if err != nil {
			return Transaction{}, fmt.Errorf("transaction %d return_date: %w", r.ID, err)
		}
		t.ReturnDate = &returned
		t.IsReturned = true
	}
	return t, nil
}

func metaInt(meta map[string]string, key string) int64 {
	n, err := strconv.ParseInt(meta[key], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
