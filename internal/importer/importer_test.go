package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/directory"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "users.json", `[
  {"email": "Ada@Example.com", "password": "C0rrect-Horse"},
  {"email": "grace@example.com", "password": "Battery-Staple1", "connection": "db"}
]`)

	users, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []directory.NewUser{
		{Email: "ada@example.com", Password: "C0rrect-Horse"},
		{Email: "grace@example.com", Password: "Battery-Staple1", Connection: "db"},
	}, users)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "users.yml", `
- email: ada@example.com
  password: C0rrect-Horse
- email: grace@example.com
  password: Battery-Staple1
`)

	users, err := Load(path)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "grace@example.com", users[1].Email)
}

func TestLoad_CollectsEveryProblem(t *testing.T) {
	path := writeFile(t, "users.json", `[
  {"email": "not-an-email", "password": "x"},
  {"email": "ok@example.com"},
  {"email": "dup@example.com", "password": "x"},
  {"email": "DUP@example.com", "password": "y"}
]`)

	users, err := Load(path)

	require.Error(t, err)
	assert.Nil(t, users)
	assert.True(t, directory.IsValidationError(err))

	problems, ok := AsProblems(err)
	require.True(t, ok)
	require.Len(t, problems, 3)

	assert.Equal(t, 0, problems[0].Index)
	assert.Equal(t, "email", problems[0].Field)
	assert.Equal(t, "email must be a valid email address", problems[0].Message)

	assert.Equal(t, 1, problems[1].Index)
	assert.Equal(t, "password", problems[1].Field)
	assert.Equal(t, "password is required", problems[1].Message)

	assert.Equal(t, 3, problems[2].Index)
	assert.Equal(t, "duplicate of record 2", problems[2].Message)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeFile(t, "users.json", `[{"email": "a@example.com", "pasword": "x"}]`)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pasword")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "users.csv", "email,password\n")

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported import file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "users.json"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeFile(t, "users.json", `[{"email": `)

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestParse_EmptyYAMLIsNoEntries(t *testing.T) {
	entries, err := Parse([]byte(""), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"users.json": FormatJSON,
		"USERS.JSON": FormatJSON,
		"users.yaml": FormatYAML,
		"users.yml":  FormatYAML,
	}
	for path, want := range tests {
		got, err := FormatFor(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
}

func TestNormalizeEmail(t *testing.T) {
	// "E" followed by a combining acute accent composes to a single rune.
	assert.Equal(t, "jos\u00e9@example.com", NormalizeEmail("  JOSE\u0301@Example.com "))
}

func TestProblems_Error(t *testing.T) {
	ps := Problems{
		{Index: 0, Email: "a@example.com", Field: "password", Message: "password is required"},
		{Index: 2, Field: "email", Message: "email is required"},
	}
	assert.Equal(t, "record 0 (a@example.com): password is required; record 2: email is required", ps.Error())
}

func TestValidator_Email(t *testing.T) {
	v := NewValidator()

	email, err := v.Email("  Ada@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)

	_, err = v.Email("not-an-address")
	require.Error(t, err)
	assert.True(t, directory.IsValidationError(err))

	_, err = v.Email("")
	assert.True(t, directory.IsValidationError(err))
}
