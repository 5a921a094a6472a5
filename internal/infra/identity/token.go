package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// exchangeTimeout is the hard limit for one token exchange round trip.
const exchangeTimeout = 20 * time.Second

// TokenProvider exchanges client credentials for a short-lived bearer token.
// Every call performs a fresh exchange; tokens are never cached.
type TokenProvider struct {
	conf       clientcredentials.Config
	httpClient *http.Client
}

func NewTokenProvider(tenantID, clientID, clientSecret, scope, tokenURL string) *TokenProvider {
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
	}
	return &TokenProvider{
		conf: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: &http.Client{Timeout: exchangeTimeout},
	}
}

func (p *TokenProvider) AcquireToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("exchanging client credentials: %w", err)
	}
	return tok.AccessToken, nil
}
