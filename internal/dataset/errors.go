// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package dataset

import (
	"errors"
	"fmt"
)

// SourceReadError indicates the input could not be read: it is missing,
// unreadable, empty, or not a valid Avro object container file.
type SourceReadError struct {
	Path string
	Err  error
}

func (e SourceReadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("read source %s", e.Path)
	}
	return fmt.Sprintf("read source %s: %v", e.Path, e.Err)
}

func (e SourceReadError) Unwrap() error {
	return e.Err
}

// SchemaMismatchError indicates a rename list or union target does not fit
// the schema of the dataset it is applied to.
type SchemaMismatchError struct {
	Reason string
}

func (e SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s", e.Reason)
}

// QueryError wraps a failure of the engine executing a SQL transform.
type QueryError struct {
	SQL string
	Err error
}

func (e QueryError) Error() string {
	return fmt.Sprintf("query failed: %v (SQL: %s)", e.Err, e.SQL)
}

func (e QueryError) Unwrap() error {
	return e.Err
}

// ConfigError indicates missing or invalid configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// PersistenceWarning is returned when materializing a dataset at the requested
// storage level failed. Callers log it and continue with the unpersisted dataset.
type PersistenceWarning struct {
	Level StorageLevel
	Err   error
}

func (e PersistenceWarning) Error() string {
	return fmt.Sprintf("persist at storage level %s: %v", e.Level, e.Err)
}

func (e PersistenceWarning) Unwrap() error {
	return e.Err
}

// NewSourceReadError creates a new SourceReadError
func NewSourceReadError(path string, err error) error {
	return SourceReadError{Path: path, Err: err}
}

// NewSchemaMismatch creates a new SchemaMismatchError with a formatted reason.
func NewSchemaMismatch(format string, args ...any) error {
	return SchemaMismatchError{Reason: fmt.Sprintf(format, args...)}
}

// NewQueryError creates a new QueryError
func NewQueryError(sql string, err error) error {
	return QueryError{SQL: sql, Err: err}
}

// NewConfigError creates a new ConfigError
func NewConfigError(field, reason string) error {
	return ConfigError{Field: field, Reason: reason}
}

// IsSourceRead checks if an error is a SourceReadError
func IsSourceRead(err error) bool {
	var target SourceReadError
	return errors.As(err, &target)
}

// IsSchemaMismatch checks if an error is a SchemaMismatchError
func IsSchemaMismatch(err error) bool {
	var target SchemaMismatchError
	return errors.As(err, &target)
}

// IsQuery checks if an error is a QueryError
func IsQuery(err error) bool {
	var target QueryError
	return errors.As(err, &target)
}

// IsConfig checks if an error is a ConfigError
func IsConfig(err error) bool {
	var target ConfigError
	return errors.As(err, &target)
}

// IsPersistenceWarning checks if an error is a PersistenceWarning
func IsPersistenceWarning(err error) bool {
	var target PersistenceWarning
	return errors.As(err, &target)
}
