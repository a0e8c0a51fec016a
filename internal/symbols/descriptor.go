// Package symbols maps model shapes to Go type descriptors.
//
// Resolution is built from plain functions: a base Resolver plus Decorators
// composed with Chain at setup time. Nothing here holds global state.
package symbols

import (
	"fmt"
	"strings"
)

// Visibility says whether a generated type is exported from its package.
type Visibility int

const (
	Public Visibility = iota
	Private
)

func (v Visibility) String() string {
	if v == Private {
		return "private"
	}
	return "public"
}

// TypeDescriptor describes the Go type a shape maps to.
type TypeDescriptor struct {
	// Name is the Go type expression without optionality, e.g. "string",
	// "[]Port", "map[string]BucketName" or "Bucket".
	Name string

	// Module is the generated module that defines Name, or "" for builtins
	// and composite expressions.
	Module string

	// Imports lists standard library packages the expression needs.
	Imports []string

	// Optional marks values that may be absent.
	Optional bool

	// Copy marks plain scalars that are cheap to copy and have no shared
	// backing storage.
	Copy bool

	// Nilable marks slices and maps, whose zero value already means "unset".
	Nilable bool

	Visibility Visibility
}

// GoType renders the descriptor as a field or parameter type. Optional
// non-nilable values become pointers.
func (d TypeDescriptor) GoType() string {
	if d.Optional && !d.Nilable {
		return "*" + d.Name
	}
	return d.Name
}

// AsOptional returns a copy marked optional.
func (d TypeDescriptor) AsOptional() TypeDescriptor {
	d.Optional = true
	return d
}

// AsRequired returns a copy marked required.
func (d TypeDescriptor) AsRequired() TypeDescriptor {
	d.Optional = false
	return d
}

// ZeroValue returns a Go expression for the type's zero value.
func (d TypeDescriptor) ZeroValue() string {
	if d.Optional && !d.Nilable {
		return "nil"
	}
	switch {
	case d.Nilable:
		return "nil"
	case d.Name == "string":
		return `""`
	case d.Name == "bool":
		return "false"
	case isNumeric(d.Name):
		return "0"
	case strings.HasPrefix(d.Name, "*"):
		return "nil"
	default:
		return d.Name + "{}"
	}
}

func (d TypeDescriptor) String() string {
	return fmt.Sprintf("%s (optional=%t, copy=%t, module=%q)", d.GoType(), d.Optional, d.Copy, d.Module)
}

func isNumeric(name string) bool {
	switch name {
	case "int", "int8", "int16", "int32", "int64", "float32", "float64":
		return true
	}
	return false
}

// ScalarTag names the primitive types endpoint parameters can declare.
type ScalarTag string

const (
	TagString  ScalarTag = "string"
	TagBoolean ScalarTag = "boolean"
)

// ResolveScalarType maps a parameter type tag to its Go type.
func ResolveScalarType(tag ScalarTag) (TypeDescriptor, error) {
	switch ScalarTag(strings.ToLower(string(tag))) {
	case TagString:
		return TypeDescriptor{Name: "string", Copy: true}, nil
	case TagBoolean:
		return TypeDescriptor{Name: "bool", Copy: true}, nil
	default:
		return TypeDescriptor{}, fmt.Errorf("unsupported parameter type %q (expected string or boolean)", tag)
	}
}
