// Package errors turns arbitrary errors into metric tag values.
package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/target/projectdesk/internal/errors"
)

// Classify returns a low-cardinality name for err suitable for tagging metrics and logs.
// Known failure families get a stable name; anything else is named after its innermost type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) {
		return "app_" + string(appErr.Code)
	}
	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		// SQLSTATE class keeps cardinality bounded.
		return "postgres_" + pgErr.Code[:2]
	}
	var netErr net.Error
	if goerrors.As(err, &netErr) {
		return "network"
	}

	return typeName(innermost(err))
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeName(err error) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	name = strings.ToLower(strings.ReplaceAll(name, ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
