package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	redisadapter "github.com/target/projectdesk/internal/adapters/redis"
	"github.com/target/projectdesk/internal/bootstrap"
)

type revokeSessionOptions struct {
	Token string
}

// sessionClearer is the part of the session store revoke-session needs.
type sessionClearer interface {
	Clear(ctx context.Context, token string) error
}

func runRevokeSession(cmdCtx *commandContext, args []string) error {
	opts, err := parseRevokeSessionFlags(args, cmdCtx.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	client, err := bootstrap.ConnectRedis(ctx, cmdCtx.Config.Redis, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	store, err := redisadapter.NewSessionStore(client, redisadapter.SessionStoreOptions{
		Prefix: cmdCtx.Config.Session.KeyPrefix,
		TTL:    cmdCtx.Config.Session.InactivityExpiry,
	})
	if err != nil {
		return err
	}
	return revokeSession(ctx, store, opts, cmdCtx.Stdout)
}

func revokeSession(ctx context.Context, store sessionClearer, opts revokeSessionOptions, out io.Writer) error {
	if err := store.Clear(ctx, opts.Token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return writeln(out, "session revoked")
}

func parseRevokeSessionFlags(args []string, stderr io.Writer) (revokeSessionOptions, error) {
	fs := flag.NewFlagSet("revoke-session", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts revokeSessionOptions
	fs.StringVar(&opts.Token, "token", "", "Session token (the session cookie value)")

	if err := fs.Parse(args); err != nil {
		return revokeSessionOptions{}, err
	}
	opts.Token = strings.TrimSpace(opts.Token)
	if opts.Token == "" {
		return revokeSessionOptions{}, errors.New("--token is required")
	}
	if _, err := uuid.Parse(opts.Token); err != nil {
		return revokeSessionOptions{}, errors.New("--token must be a session UUID")
	}
	return opts, nil
}
