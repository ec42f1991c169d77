package database

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
)

// Postgres SQLSTATE codes treated as transient.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateTooManyConnections   = "53300"
	sqlStateAdminShutdown        = "57P01"
	sqlStateCrashShutdown        = "57P02"
	sqlStateCannotConnectNow     = "57P03"
	sqlStateQueryCanceled        = "57014"
)

// ClassifyError wraps err with apperrors.ErrTransientStore when it is a
// connection failure, timeout, or a conflict Postgres asks the client to
// retry. Other errors are returned unchanged. Context cancellation by the
// caller is not transient.
func ClassifyError(err error) error {
	if err == nil || errors.Is(err, apperrors.ErrTransientStore) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %w", apperrors.ErrTransientStore, err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateTooManyConnections,
			sqlStateAdminShutdown, sqlStateCrashShutdown, sqlStateCannotConnectNow, sqlStateQueryCanceled:
			return true
		}
		// Class 08: connection exception.
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
