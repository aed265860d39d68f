// Command authctl signs in to the auth service from a terminal and keeps the
// session in the OS keychain.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/term"

	"github.com/JaiminPatel345/glowup-sub002/internal/client"
)

type cliConfig struct {
	BaseURL string `env:"AUTHCTL_URL" envDefault:"http://localhost:8081/api/v1"`
	Profile string `env:"AUTHCTL_PROFILE" envDefault:"default"`
	Memory  bool   `env:"AUTHCTL_NO_KEYRING" envDefault:"false"`
}

// readPassword is swapped in tests.
var readPassword = term.ReadPassword

const usage = `usage: authctl [flags] <command>

commands:
  register         create an account
  login            sign in
  logout           sign out and forget the session
  me               show the signed-in profile
  change-password  change the password of the signed-in account
  reset-password   request a password reset link
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage); fs.PrintDefaults() }
	fs.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "auth API base URL")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, "keychain entry holding the session")
	fs.BoolVar(&cfg.Memory, "no-keyring", cfg.Memory, "keep the session in memory only")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	var store client.TokenStore = client.NewKeyringStore("glowup-authctl", cfg.Profile)
	if cfg.Memory {
		store = client.NewMemoryStore()
	}
	c := client.New(cfg.BaseURL, store, client.WithTimeout(*timeout))
	reader := bufio.NewReader(stdin)
	ctx := context.Background()

	if err := dispatch(ctx, fs.Arg(0), c, reader, stdout); err != nil {
		fmt.Fprintln(stderr, client.UserMessage(err))
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, cmd string, c *client.Client, reader *bufio.Reader, w io.Writer) error {
	switch cmd {
	case "register":
		email, err := prompt(reader, w, "Email")
		if err != nil {
			return err
		}
		name, err := prompt(reader, w, "First name")
		if err != nil {
			return err
		}
		pw, err := password(w, "Password")
		if err != nil {
			return err
		}
		user, err := c.Register(ctx, client.RegisterRequest{Email: email, Password: pw, FirstName: name})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Registered %s. Check your inbox to verify the address.\n", user.Email)
	case "login":
		email, err := prompt(reader, w, "Email")
		if err != nil {
			return err
		}
		pw, err := password(w, "Password")
		if err != nil {
			return err
		}
		user, err := c.Login(ctx, email, pw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Signed in as %s\n", user.Email)
	case "logout":
		if err := c.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "Signed out")
	case "me":
		user, err := c.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "id:       %s\nemail:    %s\nname:     %s\nrole:     %s\nverified: %t\n",
			user.ID, user.Email, user.FirstName, user.Role, user.EmailVerified)
	case "change-password":
		current, err := password(w, "Current password")
		if err != nil {
			return err
		}
		next, err := password(w, "New password")
		if err != nil {
			return err
		}
		if err := c.ChangePassword(ctx, current, next); err != nil {
			return err
		}
		fmt.Fprintln(w, "Password changed. Other devices have been signed out.")
	case "reset-password":
		email, err := prompt(reader, w, "Email")
		if err != nil {
			return err
		}
		if err := c.RequestPasswordReset(ctx, email); err != nil {
			return err
		}
		fmt.Fprintln(w, "If that email is registered, a reset link is on its way.")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func prompt(reader *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func password(w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
