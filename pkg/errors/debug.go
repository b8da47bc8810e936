package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump flattens an error chain for structured logs.
type ErrorDump struct {
	Message   string   `json:"message"`
	Code      Code     `json:"code,omitempty"`
	Retryable bool     `json:"retryable"`
	Chain     []string `json:"chain,omitempty"`
	Postgres  *PGInfo  `json:"postgres,omitempty"`
}

// PGInfo holds the driver fields of a postgres error, whichever driver produced it.
type PGInfo struct {
	SQLState   string `json:"sqlstate"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{Message: err.Error(), Code: CodeOf(err)}
	d.Retryable = MetadataFor(d.Code).Retryable
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.Postgres = postgresInfo(err)
	return d
}

// Fields renders the dump as logger fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_code":  d.Code,
		"error_chain": d.Chain,
		"retryable":   d.Retryable,
	}
	if d.Postgres != nil {
		fields["pg_sqlstate"] = d.Postgres.SQLState
		fields["pg_constraint"] = d.Postgres.Constraint
		fields["pg_table"] = d.Postgres.Table
		fields["pg_detail"] = d.Postgres.Detail
	}
	return fields
}

func postgresInfo(err error) *PGInfo {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGInfo{
			SQLState:   pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Detail:     pgxErr.Detail,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGInfo{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
		}
	}
	return nil
}
