// Package importer reads and validates bulk user files before any user is
// created. A file is either accepted whole or rejected with every problem
// listed.
package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rollcall/internal/directory"
)

// Format is an import file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Entry is one user as written in an import file.
type Entry struct {
	Email      string `json:"email" yaml:"email" validate:"required,email"`
	Password   string `json:"password" yaml:"password" validate:"required"`
	Connection string `json:"connection,omitempty" yaml:"connection,omitempty"`
}

// Problem is one defect found in an import file.
type Problem struct {
	Index   int    `json:"index"`
	Email   string `json:"email,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Email != "" {
		return fmt.Sprintf("record %d (%s): %s", p.Index, p.Email, p.Message)
	}
	return fmt.Sprintf("record %d: %s", p.Index, p.Message)
}

// Problems collects every defect in a file.
type Problems []Problem

func (ps Problems) Error() string {
	lines := make([]string, len(ps))
	for i, p := range ps {
		lines[i] = p.String()
	}
	return strings.Join(lines, "; ")
}

// AsProblems extracts the problem list from an import error.
func AsProblems(err error) (Problems, bool) {
	var ps Problems
	if errors.As(err, &ps) {
		return ps, true
	}
	return nil, false
}

// FormatFor picks the format from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported import file %q: expected .json, .yaml or .yml", path)
	}
}

// Load reads, parses and validates the file at path. Nothing is returned
// unless the whole file is valid.
func Load(path string) ([]directory.NewUser, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	entries, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	users, err := NewValidator().Validate(entries)
	if err != nil {
		return nil, &directory.Error{
			Code:    directory.ErrCodeValidation,
			Message: fmt.Sprintf("import file %s rejected", path),
			Err:     err,
		}
	}
	return users, nil
}

// Parse decodes a list of entries. Unknown fields are rejected so a typo
// such as "pasword" fails loudly instead of creating a user without one.
func Parse(data []byte, format Format) ([]Entry, error) {
	var entries []Entry

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&entries); err != nil {
			return nil, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	return entries, nil
}

// Validator checks entries with go-playground/validator, reporting fields
// by their file names.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate normalizes emails and checks every entry. Duplicate emails
// (after normalization) are problems too. The returned error is Problems
// listing every defect, in file order.
func (v *Validator) Validate(entries []Entry) ([]directory.NewUser, error) {
	var problems Problems
	users := make([]directory.NewUser, 0, len(entries))
	seen := make(map[string]int, len(entries))

	for i, e := range entries {
		e.Email = NormalizeEmail(e.Email)
		e.Connection = strings.TrimSpace(e.Connection)

		if err := v.validate.Struct(e); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return nil, err
			}
			for _, fe := range verrs {
				problems = append(problems, Problem{
					Index:   i,
					Email:   e.Email,
					Field:   fe.Field(),
					Message: fieldMessage(fe),
				})
			}
			continue
		}

		if first, dup := seen[e.Email]; dup {
			problems = append(problems, Problem{
				Index:   i,
				Email:   e.Email,
				Field:   "email",
				Message: fmt.Sprintf("duplicate of record %d", first),
			})
			continue
		}
		seen[e.Email] = i

		users = append(users, directory.NewUser{
			Email:      e.Email,
			Password:   e.Password,
			Connection: e.Connection,
		})
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return users, nil
}

// Email normalizes a single address and checks it the way file entries
// are checked.
func (v *Validator) Email(email string) (string, error) {
	email = NormalizeEmail(email)
	if err := v.validate.Var(email, "required,email"); err != nil {
		return "", directory.NewValidationError(email, fmt.Errorf("%q is not a valid email address", email))
	}
	return email, nil
}

// NormalizeEmail trims, NFC-normalizes and lowercases an address so that
// visually identical addresses compare equal.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
