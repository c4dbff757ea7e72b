// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the typed error taxonomy surfaced by the core.
// Diagnostics rendering (error codes, labels) is an external concern; this
// package only carries the structured information a renderer would need.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fragment is the source text span associated with a user-facing error.
// Rendering the fragment into a diagnostic is the responsibility of a
// layer outside the core.
type Fragment struct {
	Text   string
	Line   int
	Column int
}

func (f Fragment) String() string {
	if f.Text == "" {
		return ""
	}
	return fmt.Sprintf("%d:%d: %s", f.Line, f.Column, f.Text)
}

// CatalogKind names the catalog object class involved in a CatalogNotFound,
// CatalogAlreadyExists, or CatalogInUse error.
type CatalogKind string

const (
	KindNamespace    CatalogKind = "namespace"
	KindTable        CatalogKind = "table"
	KindView         CatalogKind = "view"
	KindColumn       CatalogKind = "column"
	KindFlow         CatalogKind = "flow"
	KindDictionary   CatalogKind = "dictionary"
	KindUser         CatalogKind = "user"
	KindRole         CatalogKind = "role"
	KindPolicy       CatalogKind = "policy"
	KindPrimaryKey   CatalogKind = "primary_key"
	KindSequence     CatalogKind = "sequence"
	KindVirtualTable CatalogKind = "virtual_table"
)

// CatalogNotFound is returned when a lookup by name or id fails.
type CatalogNotFound struct {
	Kind CatalogKind
	Name string
}

func (e *CatalogNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// CatalogAlreadyExists is returned when CREATE without IF NOT EXISTS collides.
type CatalogAlreadyExists struct {
	Kind CatalogKind
	Name string
}

func (e *CatalogAlreadyExists) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

// CatalogInUse is returned when a drop target is referenced by dependents.
type CatalogInUse struct {
	Kind       CatalogKind
	Name       string
	Dependents []string
}

func (e *CatalogInUse) Error() string {
	return fmt.Sprintf("%s %q is in use by %v", e.Kind, e.Name, e.Dependents)
}

// ConstraintKind distinguishes the index type a ConstraintViolation refers to.
type ConstraintKind string

const (
	ConstraintPrimaryKey  ConstraintKind = "primary_key"
	ConstraintUniqueIndex ConstraintKind = "unique_index"
)

// ConstraintViolation is returned when an insert/update conflicts with an
// existing index entry.
type ConstraintViolation struct {
	Constraint ConstraintKind
	Table      string
	Columns    []string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("%s violation on %s%v", e.Constraint, e.Table, e.Columns)
}

// UnsupportedCast is returned when the cast table has no entry for a
// (source, target) pair.
type UnsupportedCast struct {
	From     string
	To       string
	Fragment Fragment
}

func (e *UnsupportedCast) Error() string {
	return fmt.Sprintf("cannot cast %s to %s", e.From, e.To)
}

// NumberOutOfRange is returned when narrowing under the Error saturation
// policy observes a value outside the target's representable range.
type NumberOutOfRange struct {
	Target     string
	Descriptor string
	Fragment   Fragment
}

func (e *NumberOutOfRange) Error() string {
	return fmt.Sprintf("number out of range for %s: %s", e.Target, e.Descriptor)
}

// IntegerPrecisionLoss is returned when an integer-to-float conversion would
// lose precision under the Error saturation policy.
type IntegerPrecisionLoss struct {
	Source   string
	Target   string
	Fragment Fragment
}

func (e *IntegerPrecisionLoss) Error() string {
	return fmt.Sprintf("converting %s to %s loses precision", e.Source, e.Target)
}

// WriteConflict is returned by the oracle when a command transaction's read
// set intersects a newer committed window.
type WriteConflict struct {
	Key string
}

func (e *WriteConflict) Error() string {
	if e.Key == "" {
		return "write conflict"
	}
	return fmt.Sprintf("write conflict on key %q", e.Key)
}

// SequenceKind distinguishes which counter was exhausted.
type SequenceKind string

const (
	SequenceAutoIncrement SequenceKind = "auto_increment"
	SequenceCDCOrdinal    SequenceKind = "cdc_sequence"
)

// SequenceExhausted is returned on auto-increment overflow, or when a single
// transaction would produce more than 65535 CDC changes.
type SequenceExhausted struct {
	Type SequenceKind
}

func (e *SequenceExhausted) Error() string {
	return fmt.Sprintf("%s exhausted", e.Type)
}

// BackendError wraps a storage-level failure (I/O, lock, poison).
type BackendError struct {
	Cause error
}

func (e *BackendError) Error() string { return fmt.Sprintf("backend error: %v", e.Cause) }
func (e *BackendError) Unwrap() error { return e.Cause }

// Backend wraps err as a BackendError with a stack trace, or returns nil.
func Backend(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&BackendError{Cause: err})
}

// InternalError marks an invariant violation. It should never occur in a
// correct implementation; reserved for panics caught at component
// boundaries, not for expected failure paths.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal error: " + e.Msg }

// Internal constructs a stack-traced InternalError.
func Internal(msg string) error {
	return errors.WithStack(&InternalError{Msg: msg})
}
