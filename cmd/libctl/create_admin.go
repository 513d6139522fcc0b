package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"libraryapi/internal/user"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type adminFlags struct {
	username string
	email    string
	fullName string
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newCreateAdminCmd(connect connectFunc) *cobra.Command {
	var f adminFlags
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: "Create an administrator account. The password is taken from ADMIN_PASSWORD,\n" +
			"prompted for on a terminal, or read as one line from stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.email == "" {
				return errors.New("--email (or ADMIN_EMAIL) is required")
			}
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			b, closeFn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			in := user.RegisterInput{Username: f.username, Email: f.email, Password: password}
			if f.fullName != "" {
				in.FullName = &f.fullName
			}
			u, err := b.CreateAdmin(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %q (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.username, "username", envOr("ADMIN_USERNAME", "admin"), "login name")
	cmd.Flags().StringVar(&f.email, "email", os.Getenv("ADMIN_EMAIL"), "email address")
	cmd.Flags().StringVar(&f.fullName, "full-name", os.Getenv("ADMIN_FULL_NAME"), "display name")
	return cmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		return v, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return promptPassword(cmd, int(f.Fd()))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}

func promptPassword(cmd *cobra.Command, fd int) (string, error) {
	read := func(prompt string) (string, error) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	password, err := read("Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := read("Repeat password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}
