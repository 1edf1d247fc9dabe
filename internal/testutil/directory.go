package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeUser is a user held by FakeDirectory. Field tags match the wire
// format of the users endpoint.
type FakeUser struct {
	ID          string     `json:"user_id"`
	Email       string     `json:"email"`
	LoginsCount *int       `json:"logins_count,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// FakeDirectory is an httptest server speaking the subset of the directory
// management API rollcall uses, plus the client-credentials token endpoint.
// Throttling and failures are scripted per record id or email.
type FakeDirectory struct {
	server *httptest.Server

	mu           sync.Mutex
	users        []FakeUser
	nextID       int
	token        string
	clientID     string
	clientSecret string
	audiences    []string
	retryAfter   string

	pageRequests []int
	deleteCalls  []string
	createCalls  []string

	throttleDelete map[string]int
	failDelete     map[string]int
	throttleCreate map[string]int
	weakPasswords  map[string]bool
	failPage       map[int]int
}

// NewFakeDirectory starts a fake directory holding users. The server is
// closed when the test ends.
func NewFakeDirectory(t *testing.T, users ...FakeUser) *FakeDirectory {
	t.Helper()
	d := &FakeDirectory{
		users:          append([]FakeUser(nil), users...),
		nextID:         len(users) + 1,
		token:          "test-token",
		clientID:       "test-client",
		clientSecret:   "test-secret",
		throttleDelete: make(map[string]int),
		failDelete:     make(map[string]int),
		throttleCreate: make(map[string]int),
		weakPasswords:  make(map[string]bool),
		failPage:       make(map[int]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", d.handleToken)
	mux.HandleFunc("GET /api/v2/users", d.handleList)
	mux.HandleFunc("DELETE /api/v2/users/{id}", d.handleDelete)
	mux.HandleFunc("POST /api/v2/users", d.handleCreate)

	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

// GenerateUsers returns n users with ids "auth0|1".."auth0|n".
func GenerateUsers(n int) []FakeUser {
	users := make([]FakeUser, n)
	for i := range users {
		users[i] = FakeUser{
			ID:    fmt.Sprintf("auth0|%d", i+1),
			Email: fmt.Sprintf("user%d@example.com", i+1),
		}
	}
	return users
}

// URL returns the server root (token endpoint lives at URL()+"/oauth/token").
func (d *FakeDirectory) URL() string { return d.server.URL }

// APIURL returns the base URL of the management API.
func (d *FakeDirectory) APIURL() string { return d.server.URL + "/api/v2" }

// Token returns the bearer token the fake accepts.
func (d *FakeDirectory) Token() string { return d.token }

// ClientID returns the client id the token endpoint accepts.
func (d *FakeDirectory) ClientID() string { return d.clientID }

// ClientSecret returns the client secret the token endpoint accepts.
func (d *FakeDirectory) ClientSecret() string { return d.clientSecret }

// SetRetryAfter sets the Retry-After header sent with 429 responses.
// Empty means the header is omitted.
func (d *FakeDirectory) SetRetryAfter(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retryAfter = v
}

// ThrottleDelete makes the next n deletes of id answer 429.
func (d *FakeDirectory) ThrottleDelete(id string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.throttleDelete[id] = n
}

// FailDelete makes every delete of id answer status.
func (d *FakeDirectory) FailDelete(id string, status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failDelete[id] = status
}

// ThrottleCreate makes the next n creates for email answer 429.
func (d *FakeDirectory) ThrottleCreate(email string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.throttleCreate[email] = n
}

// RejectPassword makes creates using password fail with PasswordStrengthError.
func (d *FakeDirectory) RejectPassword(password string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.weakPasswords[password] = true
}

// FailPage makes the given page request answer status.
func (d *FakeDirectory) FailPage(page, status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failPage[page] = status
}

// Users returns the users currently stored.
func (d *FakeDirectory) Users() []FakeUser {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]FakeUser(nil), d.users...)
}

// PageRequests returns the page indexes requested, in order.
func (d *FakeDirectory) PageRequests() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.pageRequests...)
}

// DeleteCalls returns the id of every DELETE received, including throttled ones.
func (d *FakeDirectory) DeleteCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.deleteCalls...)
}

// CreateCalls returns the email of every POST received, including rejected ones.
func (d *FakeDirectory) CreateCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.createCalls...)
}

// Audiences returns the audience parameter of every token request.
func (d *FakeDirectory) Audiences() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.audiences...)
}

func (d *FakeDirectory) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_request", err.Error(), "")
		return
	}
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}

	d.mu.Lock()
	d.audiences = append(d.audiences, r.PostForm.Get("audience"))
	valid := id == d.clientID && secret == d.clientSecret
	token := d.token
	d.mu.Unlock()

	if r.PostForm.Get("grant_type") != "client_credentials" || !valid {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "access_denied",
			"error_description": "Unauthorized",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   86400,
	})
}

func (d *FakeDirectory) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+d.token {
		writeAPIError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token", "")
		return false
	}
	return true
}

func (d *FakeDirectory) handleList(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(w, r) {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage <= 0 {
		perPage = 50
	}

	d.mu.Lock()
	d.pageRequests = append(d.pageRequests, page)
	status, fail := d.failPage[page]
	start := page * perPage
	var out []FakeUser
	if start < len(d.users) {
		end := min(start+perPage, len(d.users))
		out = append(out, d.users[start:end]...)
	}
	d.mu.Unlock()

	if fail {
		writeAPIError(w, status, http.StatusText(status), "page failure", "")
		return
	}
	if out == nil {
		out = []FakeUser{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (d *FakeDirectory) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(w, r) {
		return
	}
	id := r.PathValue("id")

	d.mu.Lock()
	d.deleteCalls = append(d.deleteCalls, id)
	if n := d.throttleDelete[id]; n > 0 {
		d.throttleDelete[id] = n - 1
		retryAfter := d.retryAfter
		d.mu.Unlock()
		writeThrottled(w, retryAfter)
		return
	}
	if status, ok := d.failDelete[id]; ok {
		d.mu.Unlock()
		writeAPIError(w, status, http.StatusText(status), "delete rejected", "")
		return
	}
	idx := -1
	for i, u := range d.users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		writeAPIError(w, http.StatusNotFound, "Not Found", "The user does not exist.", "inexistent_user")
		return
	}
	d.users = append(d.users[:idx], d.users[idx+1:]...)
	d.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (d *FakeDirectory) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(w, r) {
		return
	}
	var body struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		Connection string `json:"connection"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "Bad Request", "Invalid request payload JSON format", "invalid_body")
		return
	}

	d.mu.Lock()
	d.createCalls = append(d.createCalls, body.Email)
	if n := d.throttleCreate[body.Email]; n > 0 {
		d.throttleCreate[body.Email] = n - 1
		retryAfter := d.retryAfter
		d.mu.Unlock()
		writeThrottled(w, retryAfter)
		return
	}
	if d.weakPasswords[body.Password] {
		d.mu.Unlock()
		writeAPIError(w, http.StatusBadRequest, "Bad Request",
			"PasswordStrengthError: Password is too weak", "invalid_password")
		return
	}
	if body.Connection == "" {
		d.mu.Unlock()
		writeAPIError(w, http.StatusBadRequest, "Bad Request",
			"Payload validation error: 'Missing required property: connection'", "invalid_body")
		return
	}
	for _, u := range d.users {
		if strings.EqualFold(u.Email, body.Email) {
			d.mu.Unlock()
			writeAPIError(w, http.StatusConflict, "Conflict", "The user already exists.", "auth0_idp_error")
			return
		}
	}
	user := FakeUser{ID: fmt.Sprintf("auth0|%d", d.nextID), Email: body.Email}
	d.nextID++
	d.users = append(d.users, user)
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(user)
}

func writeThrottled(w http.ResponseWriter, retryAfter string) {
	if retryAfter != "" {
		w.Header().Set("Retry-After", retryAfter)
	}
	writeAPIError(w, http.StatusTooManyRequests, "Too Many Requests", "Global limit has been reached", "too_many_requests")
}

func writeAPIError(w http.ResponseWriter, status int, title, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{
		"statusCode": status,
		"error":      title,
		"message":    message,
	}
	if code != "" {
		body["errorCode"] = code
	}
	_ = json.NewEncoder(w).Encode(body)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// TimePtr returns a pointer to v.
func TimePtr(v time.Time) *time.Time { return &v }
