// Package common provides shared types, constants, and utilities used across the application
package common

import (
	"fmt"
)

// Common constants
const (
	DateFormat     = "2006-01-02"
	DateTimeFormat = "2006-01-02 15:04:05"

	// MinConvertibleRatio is the share of cells that must coerce to an amount
	// before a text column is accepted as an amount column.
	MinConvertibleRatio = 0.30
)

// Result represents a standard command response
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Count   int         `json:"count,omitempty"`
}

// Common error types
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// MissingColumnError is returned when a required column is absent or unusable
type MissingColumnError struct {
	Role   string // "amount", "key", "date", ...
	Column string
	Table  string // "A", "B" or empty for single-table tests
	Reason string
}

func (e *MissingColumnError) Error() string {
	where := ""
	if e.Table != "" {
		where = " in table " + e.Table
	}
	if e.Column == "" {
		return fmt.Sprintf("no %s column selected%s", e.Role, where)
	}
	msg := fmt.Sprintf("%s column %q not usable%s", e.Role, e.Column, where)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// InsufficientDataError is returned when nothing remains to analyse
type InsufficientDataError struct {
	Test   string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: %s", e.Test, e.Reason)
}
