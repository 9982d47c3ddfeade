package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run library commands interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(a, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// runShell reads one command per line and runs it against the open library.
// Unsaved changes are written back when the input ends or on exit.
func runShell(a *app, in io.Reader, out, errOut io.Writer) error {
	a.inShell = true
	interactive := isTerminal(in)

	if interactive {
		fmt.Fprintf(out, "Welcome to %s!\n", a.mgr.Library().Name())
		fmt.Fprintln(out, "Type 'help' for a list of commands, 'exit' to quit.")
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "\n> ")
		}
		if !scanner.Scan() {
			break
		}
		args, err := splitArgs(scanner.Text())
		if err != nil {
			fmt.Fprintln(errOut, "Error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			break
		}

		root := newRootCmd(a)
		root.SetArgs(args)
		root.SetIn(in)
		root.SetOut(out)
		root.SetErr(errOut)
		if err := root.Execute(); err != nil {
			fmt.Fprintln(errOut, "Error:", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if a.mgr.Dirty() {
		if err := a.mgr.Save(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Library data saved to %s\n", a.cfg.dataPath)
	}
	if interactive {
		fmt.Fprintln(out, "Goodbye!")
	}
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var errUnterminatedQuote = errors.New("unterminated quote")

// splitArgs splits a line on whitespace, keeping single- or double-quoted
// runs together so titles like "Pride and Prejudice" stay one argument.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				args = append(args, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, errUnterminatedQuote
	}
	if inToken {
		args = append(args, cur.String())
	}
	return args, nil
}
