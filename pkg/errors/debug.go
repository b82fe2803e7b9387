package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const pgUniqueViolation = "23505"

// StoreFailure is the driver-level detail of a database error.
type StoreFailure struct {
	Engine     string `json:"engine"`
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump flattens an error chain into log fields.
type ErrorDump struct {
	TopMessage string        `json:"top_message"`
	Code       Code          `json:"code,omitempty"`
	Retryable  bool          `json:"retryable,omitempty"`
	Chain      []string      `json:"chain,omitempty"`
	Store      *StoreFailure `json:"store,omitempty"`
}

// Fields renders the dump for logger.WithFields.
func (d ErrorDump) Fields() map[string]any {
	f := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		f["error_code"] = d.Code
	}
	if s := d.Store; s != nil {
		f["db_engine"] = s.Engine
		f["db_code"] = s.Code
		if s.Constraint != "" {
			f["db_constraint"] = s.Constraint
		}
		if s.Detail != "" {
			f["db_detail"] = s.Detail
		}
	}
	return f
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Store: storeFailure(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
		d.Retryable = MetadataFor(typed.Code()).Retryable
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// storeFailure decodes pgx, lib/pq and sqlite3 errors found in the chain.
func storeFailure(err error) *StoreFailure {
	if pgErr, ok := asType[*pgconn.PgError](err); ok {
		return &StoreFailure{
			Engine:     "postgres",
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}
	if pqErr, ok := asType[*pq.Error](err); ok {
		return &StoreFailure{
			Engine:     "postgres",
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	if liteErr, ok := asType[sqlite3.Error](err); ok {
		return &StoreFailure{
			Engine:  "sqlite",
			Code:    fmt.Sprintf("%d/%d", int(liteErr.Code), int(liteErr.ExtendedCode)),
			Message: liteErr.Error(),
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint failure from
// any supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if liteErr, ok := asType[sqlite3.Error](err); ok {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	s := storeFailure(err)
	return s != nil && s.Code == pgUniqueViolation
}

func asType[T error](err error) (T, bool) {
	var target T
	ok := stdErrors.As(err, &target)
	return target, ok
}
