package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/target/projectdesk/internal/bootstrap"
	"github.com/target/projectdesk/internal/data"
	"github.com/target/projectdesk/internal/domain/model"
	"github.com/target/projectdesk/internal/service"
)

// accountAdmin is the slice of AccountService the CLI drives.
type accountAdmin interface {
	Register(ctx context.Context, req model.SignupRequest) (*model.Account, error)
	SetPassword(ctx context.Context, email, password string) error
}

type createAccountOptions struct {
	Email string
	Name  string
}

type setPasswordOptions struct {
	Email string
}

func runCreateAccount(cmdCtx *commandContext, args []string) error {
	opts, err := parseCreateAccountFlags(args, cmdCtx.Stderr)
	if err != nil {
		return err
	}
	secret, err := readSecret(cmdCtx.Stdin)
	if err != nil {
		return err
	}

	return withAccountAdmin(cmdCtx, func(ctx context.Context, svc accountAdmin) error {
		return createAccount(ctx, svc, opts, secret, cmdCtx.Stdout)
	})
}

func runSetPassword(cmdCtx *commandContext, args []string) error {
	opts, err := parseSetPasswordFlags(args, cmdCtx.Stderr)
	if err != nil {
		return err
	}
	secret, err := readSecret(cmdCtx.Stdin)
	if err != nil {
		return err
	}

	return withAccountAdmin(cmdCtx, func(ctx context.Context, svc accountAdmin) error {
		return setPassword(ctx, svc, opts, secret, cmdCtx.Stdout)
	})
}

func createAccount(ctx context.Context, svc accountAdmin, opts createAccountOptions, secret string, out io.Writer) error {
	acct, err := svc.Register(ctx, model.SignupRequest{Email: opts.Email, Password: secret, Name: opts.Name})
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return writef(out, "created account %s (%s)\n", acct.Email, acct.ID)
}

func setPassword(ctx context.Context, svc accountAdmin, opts setPasswordOptions, secret string, out io.Writer) error {
	if err := svc.SetPassword(ctx, opts.Email, secret); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return writef(out, "password updated for %s\n", model.NormalizeEmail(opts.Email))
}

func withAccountAdmin(cmdCtx *commandContext, f func(context.Context, accountAdmin) error) error {
	hasher, err := bootstrap.NewPasswordHasher(cmdCtx.Config.Auth.Password)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		svc, err := service.NewAccountService(service.AccountServiceOptions{
			Repo:   data.NewAccountRepo(db),
			Hasher: hasher,
			Logger: cmdCtx.Logger,
		})
		if err != nil {
			return err
		}
		return f(ctx, svc)
	})
}

func parseCreateAccountFlags(args []string, stderr io.Writer) (createAccountOptions, error) {
	fs := flag.NewFlagSet("create-account", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts createAccountOptions
	fs.StringVar(&opts.Email, "email", "", "Email address of the new account (required)")
	fs.StringVar(&opts.Name, "name", "", "Display name")

	if err := fs.Parse(args); err != nil {
		return createAccountOptions{}, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return createAccountOptions{}, errors.New("--email is required")
	}
	return opts, nil
}

func parseSetPasswordFlags(args []string, stderr io.Writer) (setPasswordOptions, error) {
	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts setPasswordOptions
	fs.StringVar(&opts.Email, "email", "", "Email address of the account (required)")

	if err := fs.Parse(args); err != nil {
		return setPasswordOptions{}, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return setPasswordOptions{}, errors.New("--email is required")
	}
	return opts, nil
}

// readSecret reads the first line of r. Passwords never come from flags so they stay out of shell history.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("password must be provided on stdin")
	}
	return secret, nil
}
