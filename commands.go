package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lending-library/library"
)

// ------------------ Books ------------------

func newBookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "book", Short: "Manage the catalogue"}

	var b library.Book
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b.Available = true
			if err := a.mgr.AddBook(b); err != nil {
				return fmt.Errorf("add book %d: %w", b.ID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", b)
			return nil
		},
	}
	add.Flags().Int64Var(&b.ID, "id", 0, "book id")
	add.Flags().StringVar(&b.Title, "title", "", "title")
	add.Flags().StringVar(&b.Author, "author", "", "author")
	add.Flags().StringVar(&b.ISBN, "isbn", "", "ISBN")
	add.Flags().IntVar(&b.PublicationYear, "year", 0, "publication year")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("author")

	remove := &cobra.Command{
		Use:   "remove BOOK_ID",
		Short: "Remove a book from the catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			if err := a.mgr.RemoveBook(id); err != nil {
				return fmt.Errorf("remove book %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed book %d\n", id)
			return nil
		},
	}

	var onlyAvailable, onlyBorrowed bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := a.mgr.Library()
			books := lib.Books()
			switch {
			case onlyAvailable:
				books = lib.AvailableBooks()
			case onlyBorrowed:
				books = lib.BorrowedBooks()
			}
			printBooks(cmd.OutOrStdout(), books)
			return nil
		},
	}
	list.Flags().BoolVar(&onlyAvailable, "available", false, "only books on the shelf")
	list.Flags().BoolVar(&onlyBorrowed, "borrowed", false, "only books currently lent out")
	list.MarkFlagsMutuallyExclusive("available", "borrowed")

	search := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search title, author and ISBN",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printBooks(cmd.OutOrStdout(), a.mgr.SearchBooks(strings.Join(args, " ")))
			return nil
		},
	}

	cmd.AddCommand(add, remove, list, search)
	return cmd
}

func printBooks(w io.Writer, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-40s %-25s %-15s %-5s %-10s\n", "ID", "Title", "Author", "ISBN", "Year", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 105))
	for _, b := range books {
		status := "Available"
		if !b.Available {
			status = "Borrowed"
		}
		fmt.Fprintf(w, "%-5d %-40s %-25s %-15s %-5d %-10s\n",
			b.ID, truncateString(b.Title, 40), truncateString(b.Author, 25), b.ISBN, b.PublicationYear, status)
	}
}

// ------------------ Members ------------------

func newMemberCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Manage members"}

	var m library.Member
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.AddMember(m); err != nil {
				return fmt.Errorf("add member %d: %w", m.ID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", m)
			return nil
		},
	}
	add.Flags().Int64Var(&m.ID, "id", 0, "member id")
	add.Flags().StringVar(&m.Name, "name", "", "full name")
	add.Flags().StringVar(&m.Email, "email", "", "email address")
	add.Flags().StringVar(&m.Phone, "phone", "", "phone number")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			members := a.mgr.GetAllMembers()
			if len(members) == 0 {
				fmt.Fprintln(w, "No members found.")
				return nil
			}
			fmt.Fprintf(w, "%-5s %-25s %-30s %-15s %-8s\n", "ID", "Name", "Email", "Phone", "Books")
			fmt.Fprintln(w, strings.Repeat("-", 87))
			for _, m := range members {
				fmt.Fprintf(w, "%-5d %-25s %-30s %-15s %-8d\n",
					m.ID, truncateString(m.Name, 25), truncateString(m.Email, 30), m.Phone, m.BorrowedCount())
			}
			return nil
		},
	}

	books := &cobra.Command{
		Use:   "books MEMBER_ID",
		Short: "List the books a member has borrowed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("member", args[0])
			if err != nil {
				return err
			}
			if _, err := a.mgr.GetMember(id); err != nil {
				return fmt.Errorf("member %d: %w", id, err)
			}
			printBooks(cmd.OutOrStdout(), a.mgr.Library().MemberBorrowedBooks(id))
			return nil
		},
	}

	cmd.AddCommand(add, list, books)
	return cmd
}

// ------------------ Librarians ------------------

func newLibrarianCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "librarian", Short: "Manage librarians"}

	var l library.Librarian
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a librarian",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.AddLibrarian(l); err != nil {
				return fmt.Errorf("add librarian %d: %w", l.ID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", l)
			return nil
		},
	}
	add.Flags().Int64Var(&l.ID, "id", 0, "librarian id")
	add.Flags().StringVar(&l.Name, "name", "", "full name")
	add.Flags().StringVar(&l.Email, "email", "", "email address")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List librarians",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			librarians := a.mgr.GetAllLibrarians()
			if len(librarians) == 0 {
				fmt.Fprintln(w, "No librarians found.")
				return nil
			}
			for _, l := range librarians {
				fmt.Fprintln(w, l)
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

// ------------------ Circulation ------------------

func newBorrowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow MEMBER_ID BOOK_ID LIBRARIAN_ID",
		Short: "Lend a book to a member",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs([]string{"member", "book", "librarian"}, args)
			if err != nil {
				return err
			}
			r, err := a.mgr.BorrowBook(ids[0], ids[1], ids[2])
			if err != nil {
				return fmt.Errorf("borrow failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.Message)
			return nil
		},
	}
}

func newReturnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return MEMBER_ID BOOK_ID",
		Short: "Take a book back from a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs([]string{"member", "book"}, args)
			if err != nil {
				return err
			}
			r, err := a.mgr.ReturnBook(ids[0], ids[1])
			if err != nil {
				return fmt.Errorf("return failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.Message)
			return nil
		},
	}
}

func newTransactionsCmd(a *app) *cobra.Command {
	var open, overdue bool
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List loan transactions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := a.mgr.Library()
			txs := lib.Transactions()
			switch {
			case overdue:
				txs = a.mgr.OverdueTransactions()
			case open:
				txs = lib.OpenTransactions()
			}
			printTransactions(cmd.OutOrStdout(), txs, a.mgr.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "only loans not yet returned")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "only loans past their due date")
	cmd.MarkFlagsMutuallyExclusive("open", "overdue")
	return cmd
}

func printTransactions(w io.Writer, txs []library.Transaction, now time.Time) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-6s %-7s %-10s %-11s %-11s %-11s %-8s\n",
		"ID", "Book", "Member", "Status", "Borrowed", "Due", "Returned", "Overdue")
	fmt.Fprintln(w, strings.Repeat("-", 76))
	for _, t := range txs {
		returned := "-"
		if t.ReturnDate != nil {
			returned = t.ReturnDate.Format(time.DateOnly)
		}
		overdue := "-"
		if d := t.DaysOverdue(now); d > 0 {
			overdue = fmt.Sprintf("%dd", d)
		}
		fmt.Fprintf(w, "%-5d %-6d %-7d %-10s %-11s %-11s %-11s %-8s\n",
			t.ID, t.BookID, t.MemberID, t.Status(),
			t.BorrowDate.Format(time.DateOnly), t.DueDate.Format(time.DateOnly), returned, overdue)
	}
}

// ------------------ Status and persistence ------------------

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show library totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.mgr.Library().Stats()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s\n", s.Name)
			fmt.Fprintln(w, strings.Repeat("=", len(s.Name)))
			fmt.Fprintf(w, "Books:        %d (%d available, %d borrowed)\n", s.TotalBooks, s.AvailableBooks, s.BorrowedBooks)
			fmt.Fprintf(w, "Members:      %d\n", s.Members)
			fmt.Fprintf(w, "Librarians:   %d\n", s.Librarians)
			fmt.Fprintf(w, "Transactions: %d (%d open, %d overdue)\n",
				s.Transactions, s.OpenTransactions, len(a.mgr.OverdueTransactions()))
			return nil
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save [PATH]",
		Short: "Write the library to its data file, or to PATH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := a.mgr.SaveAs(args[0]); err != nil {
					return fmt.Errorf("save %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Library data saved to %s\n", args[0])
				return nil
			}
			if err := a.mgr.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Library data saved to %s\n", a.cfg.dataPath)
			return nil
		},
	}
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load [PATH]",
		Short: "Replace the library with the contents of its data file, or of PATH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.dataPath
			var err error
			if len(args) == 1 {
				path = args[0]
				err = a.mgr.LoadFrom(path)
			} else {
				err = a.mgr.Reload()
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Library data loaded from %s\n", path)
			return nil
		},
	}
}

// ------------------ Helpers ------------------

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}

func parseIDs(kinds, args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, s := range args {
		id, err := parseID(kinds[i], s)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// truncateString shortens s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
