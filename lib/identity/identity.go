// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity talks to the OAuth identity provider that decides
// who may read the documentation: it builds the login redirect,
// exchanges the callback code for a token, and asks the provider's API
// whether the token's user can see the configured repository.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/bitbucket"

	"github.com/bureau-foundation/docshuttle/lib/netutil"
)

// DefaultBitbucketAPI is the Bitbucket Cloud REST API base URL.
const DefaultBitbucketAPI = "https://api.bitbucket.org"

// ErrTokenRejected is returned by Authorized when the provider no
// longer accepts the token (expired or revoked).
var ErrTokenRejected = errors.New("identity: token rejected by provider")

// Provider is the identity provider used by the access gate.
type Provider interface {
	// AuthCodeURL returns the URL to send the browser to for login.
	AuthCodeURL(state, redirectURL string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code, redirectURL string) (*oauth2.Token, error)

	// Authorized reports whether the token's user may read the
	// protected repository. A definite "no" is (false, nil); an error
	// means the question could not be answered. The returned token is
	// the one the check ended with: token itself, or its replacement
	// when the provider refreshed it. Callers keep it for the next
	// check.
	Authorized(ctx context.Context, token *oauth2.Token) (bool, *oauth2.Token, error)
}

// BitbucketConfig configures a Bitbucket provider.
type BitbucketConfig struct {
	ClientID     string
	ClientSecret string

	// Owner and Slug name the repository whose readers are admitted.
	Owner string
	Slug  string

	// Endpoint overrides the OAuth endpoints. Defaults to
	// bitbucket.Endpoint.
	Endpoint oauth2.Endpoint

	// APIURL overrides the REST API base. Defaults to
	// DefaultBitbucketAPI.
	APIURL string

	// HTTPClient is used for token exchange and API calls. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// Bitbucket is a Provider backed by Bitbucket Cloud. A user is
// authorized when the repository endpoint returns it to them, which
// Bitbucket does exactly for users with read access.
type Bitbucket struct {
	oauth      oauth2.Config
	apiURL     string
	owner      string
	slug       string
	httpClient *http.Client
}

// NewBitbucket creates a Bitbucket provider.
func NewBitbucket(config BitbucketConfig) (*Bitbucket, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, errors.New("bitbucket provider requires a client ID and secret")
	}
	if config.Owner == "" || config.Slug == "" {
		return nil, errors.New("bitbucket provider requires a repository owner and slug")
	}
	endpoint := config.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = bitbucket.Endpoint
	}
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = DefaultBitbucketAPI
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Bitbucket{
		oauth: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"repository"},
		},
		apiURL:     strings.TrimRight(apiURL, "/"),
		owner:      config.Owner,
		slug:       config.Slug,
		httpClient: httpClient,
	}, nil
}

// AuthCodeURL implements Provider.
func (b *Bitbucket) AuthCodeURL(state, redirectURL string) string {
	return b.configFor(redirectURL).AuthCodeURL(state)
}

// Exchange implements Provider.
func (b *Bitbucket) Exchange(ctx context.Context, code, redirectURL string) (*oauth2.Token, error) {
	token, err := b.configFor(redirectURL).Exchange(b.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return token, nil
}

// Authorized implements Provider by fetching the repository with the
// user's token: 200 means the user can read it, 403 and 404 mean it is
// hidden from them. Any other status is an error. An expired token with
// a refresh token is refreshed first; a refresh the provider refuses is
// ErrTokenRejected.
func (b *Bitbucket) Authorized(ctx context.Context, token *oauth2.Token) (bool, *oauth2.Token, error) {
	if token == nil {
		return false, nil, ErrTokenRejected
	}
	repositoryURL := fmt.Sprintf("%s/2.0/repositories/%s/%s",
		b.apiURL, url.PathEscape(b.owner), url.PathEscape(b.slug))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, repositoryURL, nil)
	if err != nil {
		return false, nil, fmt.Errorf("building repository request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	clientCtx := b.clientContext(ctx)
	source := b.oauth.TokenSource(clientCtx, token)
	response, err := oauth2.NewClient(clientCtx, source).Do(request)
	if err != nil {
		var refused *oauth2.RetrieveError
		if errors.As(err, &refused) {
			return false, nil, fmt.Errorf("%w: refresh refused: %w", ErrTokenRejected, err)
		}
		return false, nil, fmt.Errorf("querying repository %s/%s: %w", b.owner, b.slug, err)
	}
	defer response.Body.Close()

	// The source caches whatever token the request went out with.
	current, err := source.Token()
	if err != nil {
		current = token
	}

	switch response.StatusCode {
	case http.StatusOK:
		var repository struct {
			FullName string `json:"full_name"`
		}
		if err := netutil.DecodeResponse(response.Body, &repository); err != nil {
			return false, nil, fmt.Errorf("decoding repository response: %w", err)
		}
		return true, current, nil
	case http.StatusForbidden, http.StatusNotFound:
		return false, current, nil
	case http.StatusUnauthorized:
		return false, nil, fmt.Errorf("%w: %s", ErrTokenRejected, netutil.ErrorBody(response.Body))
	default:
		return false, nil, fmt.Errorf("querying repository %s/%s: unexpected status %d: %s",
			b.owner, b.slug, response.StatusCode, netutil.ErrorBody(response.Body))
	}
}

func (b *Bitbucket) configFor(redirectURL string) *oauth2.Config {
	config := b.oauth
	config.RedirectURL = redirectURL
	return &config
}

// clientContext carries the configured HTTP client into oauth2.
func (b *Bitbucket) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}
