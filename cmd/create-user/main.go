// Command create-user registers an account directly against the database,
// for bootstrapping a deployment or a local test user.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pixeon-io/pixeon/internal/auth"
	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/config"
	"github.com/pixeon-io/pixeon/internal/database"
	"github.com/pixeon-io/pixeon/internal/logging"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

type options struct {
	configPath string
	username   string
	email      string
	password   string
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logging.New(os.Stderr, cfg.LogLevel, "text")

	db, err := database.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	tokens, err := auth.NewTokenManager(cfg.SecretKey, cfg.Algorithm, time.Duration(cfg.AccessTokenExpireMinutes)*time.Minute)
	if err != nil {
		return err
	}
	svc := auth.NewService(db, tokens, log)

	reader := bufio.NewReader(stdin)
	if opts.username == "" {
		if opts.username, err = prompt(reader, stdout, "Username: "); err != nil {
			return err
		}
	}
	if opts.email == "" {
		if opts.email, err = prompt(reader, stdout, "Email: "); err != nil {
			return err
		}
	}
	if opts.password == "" {
		fmt.Fprint(stdout, "Password: ")
		pw, err := readPassword()
		fmt.Fprintln(stdout)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		opts.password = string(pw)
	}

	user, err := svc.Register(ctx, opts.username, opts.email, opts.password)
	if err != nil {
		if errors.Is(err, common.ErrValidation) || errors.Is(err, common.ErrConflict) {
			return errors.New(common.Message(err, err.Error()))
		}
		return err
	}

	fmt.Fprintf(stdout, "Created user %s (%s)\n", user.Username, user.ID)
	return nil
}

func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to an optional YAML configuration file")
	flag.StringVar(&opts.username, "username", "", "Username (prompted when empty)")
	flag.StringVar(&opts.email, "email", "", "Email (prompted when empty)")
	flag.StringVar(&opts.password, "password", "", "Password (read without echo when empty)")
	flag.Parse()

	if err := run(context.Background(), opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "create-user: %v\n", err)
		os.Exit(1)
	}
}
