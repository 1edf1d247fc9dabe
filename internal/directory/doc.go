// Package directory is the client side of the remote identity directory.
//
// It owns the record model (Record, Roster, NewUser), the HTTP client for
// the users endpoints, the paginated Fetcher, and the error taxonomy every
// other rollcall package reports through.
//
// # Pagination
//
// Fetcher.FetchAll requests fixed-size pages starting at page 0 and stops on
// the first page shorter than PageSize. There is no page-count cap; the
// sweep is bounded by the size of the directory only.
//
// # Errors
//
// All failures are *Error values carrying an ErrorCode (AUTH, FETCH, CONFIG,
// THROTTLED, VALIDATION, MUTATION). Non-2xx HTTP responses surface as
// *APIError, which keeps the status code and the Retry-After hint for the
// mutation engine's backoff.
package directory
