package directory

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/testutil"
)

func TestClient_ListUsersDecodesOptionalFields(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := testutil.NewFakeDirectory(t,
		testutil.FakeUser{ID: "auth0|1", Email: "a@example.com", LoginsCount: testutil.IntPtr(4), LastLogin: &last},
		testutil.FakeUser{ID: "auth0|2", Email: "b@example.com"},
	)
	client := NewClient(fake.APIURL(), nil, nil)

	recs, err := client.ListUsers(context.Background(), fake.Token(), 0, PageSize)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.NotNil(t, recs[0].LoginCount)
	assert.Equal(t, 4, *recs[0].LoginCount)
	require.NotNil(t, recs[0].LastLogin)
	assert.True(t, last.Equal(*recs[0].LastLogin))

	assert.Nil(t, recs[1].LoginCount)
	assert.Nil(t, recs[1].LastLogin)
}

func TestClient_DeleteUser(t *testing.T) {
	fake := testutil.NewFakeDirectory(t, testutil.GenerateUsers(2)...)
	client := NewClient(fake.APIURL(), nil, nil)

	require.NoError(t, client.DeleteUser(context.Background(), fake.Token(), "auth0|1"))

	users := fake.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "auth0|2", users[0].ID)
}

func TestClient_DeleteUserNotFound(t *testing.T) {
	fake := testutil.NewFakeDirectory(t)
	client := NewClient(fake.APIURL(), nil, nil)

	err := client.DeleteUser(context.Background(), fake.Token(), "auth0|missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "inexistent_user", apiErr.ErrorCode)
	assert.False(t, IsThrottled(err))
}

func TestClient_ThrottledCarriesRetryAfter(t *testing.T) {
	fake := testutil.NewFakeDirectory(t, testutil.GenerateUsers(1)...)
	fake.ThrottleDelete("auth0|1", 1)
	fake.SetRetryAfter("7")
	client := NewClient(fake.APIURL(), nil, nil)

	err := client.DeleteUser(context.Background(), fake.Token(), "auth0|1")
	require.Error(t, err)
	assert.True(t, IsThrottled(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.True(t, apiErr.HasRetryAfter)
}

func TestClient_ThrottledWithZeroRetryAfter(t *testing.T) {
	fake := testutil.NewFakeDirectory(t, testutil.GenerateUsers(1)...)
	fake.ThrottleDelete("auth0|1", 1)
	fake.SetRetryAfter("0")
	client := NewClient(fake.APIURL(), nil, nil)

	err := client.DeleteUser(context.Background(), fake.Token(), "auth0|1")
	require.Error(t, err)

	d, ok := RetryAfterHint(err)
	assert.True(t, ok, "an explicit zero is still a hint")
	assert.Zero(t, d)
}

func TestClient_ThrottledWithoutHint(t *testing.T) {
	fake := testutil.NewFakeDirectory(t, testutil.GenerateUsers(1)...)
	fake.ThrottleDelete("auth0|1", 1)
	client := NewClient(fake.APIURL(), nil, nil)

	err := client.DeleteUser(context.Background(), fake.Token(), "auth0|1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.RetryAfter)
	assert.False(t, apiErr.HasRetryAfter)

	_, ok := RetryAfterHint(err)
	assert.False(t, ok)
}

func TestClient_CreateUser(t *testing.T) {
	fake := testutil.NewFakeDirectory(t)
	client := NewClient(fake.APIURL(), nil, nil)

	rec, err := client.CreateUser(context.Background(), fake.Token(), NewUser{
		Email:      "new@example.com",
		Password:   "S3cure!pass",
		Connection: "Username-Password-Authentication",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", rec.Email)
	assert.NotEmpty(t, rec.ID)
}

func TestClient_CreateUserWeakPassword(t *testing.T) {
	fake := testutil.NewFakeDirectory(t)
	fake.RejectPassword("123")
	client := NewClient(fake.APIURL(), nil, nil)

	_, err := client.CreateUser(context.Background(), fake.Token(), NewUser{
		Email: "new@example.com", Password: "123", Connection: "db",
	})
	require.Error(t, err)
	assert.True(t, IsPasswordStrength(err))
	assert.True(t, IsValidationError(err))
}

func TestClient_CreateUserConflictIsNotPasswordStrength(t *testing.T) {
	fake := testutil.NewFakeDirectory(t, testutil.FakeUser{ID: "auth0|1", Email: "dup@example.com"})
	client := NewClient(fake.APIURL(), nil, nil)

	_, err := client.CreateUser(context.Background(), fake.Token(), NewUser{
		Email: "dup@example.com", Password: "S3cure!pass", Connection: "db",
	})
	require.Error(t, err)
	assert.False(t, IsPasswordStrength(err))
	assert.False(t, IsThrottled(err))
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]struct {
		want time.Duration
		ok   bool
	}{
		"":                              {0, false},
		"0":                             {0, true},
		"3":                             {3 * time.Second, true},
		" 10 ":                          {10 * time.Second, true},
		"-1":                            {0, false},
		"soon":                          {0, false},
		"Wed, 21 Oct 2015 07:28:00 GMT": {0, false},
	}
	for in, tc := range tests {
		got, ok := parseRetryAfter(in)
		assert.Equal(t, tc.want, got, "input %q", in)
		assert.Equal(t, tc.ok, ok, "input %q", in)
	}
}

func TestErrorHelpers(t *testing.T) {
	wrapped := NewFetchError("fetch page 0", &APIError{StatusCode: http.StatusForbidden})
	assert.True(t, IsFetchError(wrapped))
	assert.False(t, IsAuthError(wrapped))
	assert.Contains(t, wrapped.Error(), "FETCH")
	assert.Contains(t, wrapped.Error(), "403")

	cfg := NewConfigError("inactivity cutoff not set")
	assert.True(t, IsConfigError(cfg))
	assert.Equal(t, "CONFIG: inactivity cutoff not set", cfg.Error())

	mut := NewMutationError("auth0|9", errors.New("boom"))
	assert.True(t, IsMutationError(mut))
	assert.Equal(t, "MUTATION: mutation failed (record=auth0|9): boom", mut.Error())
}
