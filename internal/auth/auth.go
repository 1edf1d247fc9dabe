// Package auth acquires the bearer token used for every directory call.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/roach88/rollcall/internal/directory"
)

// ClientCredentials fetches a token with the OAuth2 client-credentials grant.
// It implements engine.TokenProvider and is called once per operation.
type ClientCredentials struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClientCredentials builds a token source for tokenURL. audience is sent
// as an extra form parameter when non-empty.
func NewClientCredentials(tokenURL, clientID, clientSecret, audience string, httpClient *http.Client, logger *slog.Logger) *ClientCredentials {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: directory.DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	params := url.Values{}
	if audience != "" {
		params.Set("audience", audience)
	}

	return &ClientCredentials{
		cfg: clientcredentials.Config{
			ClientID:       clientID,
			ClientSecret:   clientSecret,
			TokenURL:       tokenURL,
			EndpointParams: params,
			AuthStyle:      oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		logger:     logger,
	}
}

// missingAccessToken is part of the untyped error golang.org/x/oauth2
// (v0.23.0, internal/token.go) returns for a 2xx token response without
// an access_token. TestToken_OAuth2MissingAccessTokenMeansNoCredential
// breaks if the library rewords it.
const missingAccessToken = "missing access_token"

// Token returns a fresh access token.
//
// A rejected request or transport failure is an AUTH error. A successful
// response that carries no token yields "" and a nil error, which callers
// treat as "no credential".
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.cfg.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if !errors.As(err, &retrieveErr) && strings.Contains(err.Error(), missingAccessToken) {
			c.logger.Warn("token response carried no access token", "token_url", c.cfg.TokenURL)
			return "", nil
		}
		return "", directory.NewAuthError("token request failed", err)
	}

	c.logger.Debug("token acquired", "token_url", c.cfg.TokenURL, "expires", tok.Expiry)
	return tok.AccessToken, nil
}
