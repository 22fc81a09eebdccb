package user

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

type GoogleProfile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// GoogleIdentity turns an authorization code into tokens and the signed-in profile.
type GoogleIdentity interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Profile(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error)
}

type googleIdentity struct {
	oauthConfig *oauth2.Config
}

func NewGoogleIdentity(oauthConfig *oauth2.Config) GoogleIdentity {
	return &googleIdentity{oauthConfig: oauthConfig}
}

func (g *googleIdentity) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.oauthConfig.Exchange(ctx, code)
}

func (g *googleIdentity) Profile(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error) {
	srv, err := oauth2api.NewService(ctx, option.WithTokenSource(g.oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create userinfo client: %w", err)
	}

	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}

	return &GoogleProfile{
		ID:      info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
