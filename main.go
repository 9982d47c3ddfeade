package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lending-library/library"
)

// app carries the open library across one command, or across every line of a shell session.
type app struct {
	cfg     config
	mgr     *library.LibraryManager
	inShell bool
}

func (a *app) open() error {
	if a.mgr != nil {
		return nil
	}
	mgr, err := library.NewLibraryManager(a.cfg.dataPath, a.cfg.name, library.WithLogger(a.cfg.newLogger()))
	if err != nil {
		return err
	}
	a.mgr = mgr
	return nil
}

// persist saves after a one-shot command that changed state.
func (a *app) persist() error {
	if a.inShell || a.mgr == nil || !a.mgr.Dirty() {
		return nil
	}
	return a.mgr.Save()
}

func (a *app) close() {
	if a.mgr != nil {
		a.mgr.Close()
		a.mgr = nil
	}
}

func newRootCmd(a *app) *cobra.Command {
	var cfg config
	root := &cobra.Command{
		Use:           "library",
		Short:         "Manage books, members and loans of a small lending library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.mgr != nil {
				return nil
			}
			a.cfg = cfg
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.persist()
		},
	}
	root.PersistentFlags().StringVar(&cfg.dataPath, "data", getEnv("LIBRARY_DATA", defaultDataFile),
		"library data file (.json, or .db/.sqlite for SQLite)")
	root.PersistentFlags().StringVar(&cfg.name, "library-name", getEnv("LIBRARY_NAME", defaultName),
		"library name used when the data file does not exist yet")
	root.PersistentFlags().BoolVarP(&cfg.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newBookCmd(a),
		newMemberCmd(a),
		newLibrarianCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newTransactionsCmd(a),
		newStatusCmd(a),
		newSaveCmd(a),
		newLoadCmd(a),
	)
	if !a.inShell {
		root.AddCommand(newShellCmd(a))
	}
	return root
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		a.close()
		os.Exit(1)
	}
}
