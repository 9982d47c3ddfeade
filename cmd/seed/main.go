package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lending-library/library"
)

var sampleLibrarians = []library.Librarian{
	{ID: 1, Name: "Alice Johnson", Email: "alice@library.com"},
	{ID: 2, Name: "Bob Smith", Email: "bob@library.com"},
}

var sampleBooks = []library.Book{
	{ID: 1, Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "978-0-7432-7356-5", PublicationYear: 1925, Available: true},
	{ID: 2, Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "978-0-06-112008-4", PublicationYear: 1960, Available: true},
	{ID: 3, Title: "1984", Author: "George Orwell", ISBN: "978-0-452-28423-4", PublicationYear: 1949, Available: true},
	{ID: 4, Title: "Pride and Prejudice", Author: "Jane Austen", ISBN: "978-0-14-143951-8", PublicationYear: 1813, Available: true},
	{ID: 5, Title: "The Catcher in the Rye", Author: "J.D. Salinger", ISBN: "978-0-316-76948-0", PublicationYear: 1951, Available: true},
}

var sampleMembers = []library.Member{
	{ID: 1, Name: "John Doe", Email: "john@email.com", Phone: "555-0101"},
	{ID: 2, Name: "Jane Smith", Email: "jane@email.com", Phone: "555-0102"},
	{ID: 3, Name: "Mike Wilson", Email: "mike@email.com", Phone: "555-0103"},
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// seed adds the sample records to mgr, reporting each one to w. Records
// whose id is already taken are skipped, so seeding twice is harmless.
func seed(w io.Writer, mgr *library.LibraryManager) (added, skipped int) {
	report := func(kind, label string, err error) {
		if err != nil {
			fmt.Fprintf(w, "Skipping %s %s: %v\n", kind, label, err)
			skipped++
			return
		}
		fmt.Fprintf(w, "Added %s %s\n", kind, label)
		added++
	}
	for _, l := range sampleLibrarians {
		report("librarian", l.Name, mgr.AddLibrarian(l))
	}
	for _, b := range sampleBooks {
		report("book", b.Title, mgr.AddBook(b))
	}
	for _, m := range sampleMembers {
		report("member", m.Name, mgr.AddMember(m))
	}
	return added, skipped
}

// removeDataFiles deletes path and any SQLite sidecar files next to it.
func removeDataFiles(w io.Writer, path string) {
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(w, "Warning: Could not remove %s: %v\n", file, err)
		}
	}
}

func newSeedCmd() *cobra.Command {
	var (
		dataPath string
		name     string
		reset    bool
	)
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Populate a library data file with sample books, members and librarians",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if reset {
				fmt.Fprintf(w, "Removing existing data at %s...\n", dataPath)
				removeDataFiles(w, dataPath)
			}

			mgr, err := library.NewLibraryManager(dataPath, name)
			if err != nil {
				return fmt.Errorf("open %s: %w", dataPath, err)
			}
			defer mgr.Close()

			added, skipped := seed(w, mgr)
			if err := mgr.Save(); err != nil {
				return err
			}

			fmt.Fprintf(w, "\nSeeding complete!\n")
			fmt.Fprintf(w, "Added: %d\n", added)
			fmt.Fprintf(w, "Skipped: %d\n", skipped)

			fmt.Fprintln(w, "\nCatalogue:")
			fmt.Fprintf(w, "%-3s %-40s %-30s\n", "ID", "Title", "Author")
			fmt.Fprintln(w, strings.Repeat("-", 75))
			for _, b := range mgr.GetAllBooks() {
				fmt.Fprintf(w, "%-3d %-40s %-30s\n", b.ID, truncateString(b.Title, 40), truncateString(b.Author, 30))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", getEnv("LIBRARY_DATA", "library_data.json"), "library data file to seed")
	cmd.Flags().StringVar(&name, "name", getEnv("LIBRARY_NAME", "City Central Library"), "library name for a new data file")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the existing data file first")
	return cmd
}

func main() {
	_ = godotenv.Load()
	if err := newSeedCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
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
