package nideriji

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// ErrAuth marks every login failure. A migration cannot proceed without a
// session, so callers treat it as fatal.
var ErrAuth = errors.New("nideriji login failed")

// Account describes the logged-in user.
type Account struct {
	UserID     string
	Name       string
	DiaryCount int
}

type loginResp struct {
	Error      int    `json:"error"`
	Token      string `json:"token"`
	UserID     ID     `json:"userid"`
	UserConfig struct {
		Name       string `json:"name"`
		DiaryCount int    `json:"diary_count"`
	} `json:"user_config"`
}

// loginSource is an oauth2.TokenSource that obtains a session token by posting
// the account credentials to the login endpoint. The user id travels in the
// token's extra data.
type loginSource struct {
	ctx      context.Context
	client   *http.Client
	opts     Options
	email    string
	password string
}

func (s *loginSource) Token() (*oauth2.Token, error) {
	form := url.Values{
		"email":    {s.email},
		"password": {s.password},
	}
	var lr loginResp
	if err := postForm(s.ctx, s.client, s.opts.BaseURL+"/api/login/", form, s.opts.Timeout, &lr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if lr.Error != 0 {
		return nil, fmt.Errorf("%w: service returned error %d", ErrAuth, lr.Error)
	}
	if lr.Token == "" {
		return nil, fmt.Errorf("%w: no token in response", ErrAuth)
	}
	tok := &oauth2.Token{AccessToken: lr.Token, TokenType: "token"}
	return tok.WithExtra(map[string]any{
		"userid":      string(lr.UserID),
		"name":        lr.UserConfig.Name,
		"diary_count": lr.UserConfig.DiaryCount,
	}), nil
}

func accountFromToken(tok *oauth2.Token) Account {
	a := Account{}
	if v, ok := tok.Extra("userid").(string); ok {
		a.UserID = v
	}
	if v, ok := tok.Extra("name").(string); ok {
		a.Name = v
	}
	if v, ok := tok.Extra("diary_count").(int); ok {
		a.DiaryCount = v
	}
	return a
}

// authTransport stamps the session token and the client identification onto
// every request.
type authTransport struct {
	base      http.RoundTripper
	source    oauth2.TokenSource
	userAgent string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if t.userAgent != "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	if t.source != nil {
		tok, err := t.source.Token()
		if err != nil {
			return nil, err
		}
		r.Header.Set("auth", strings.TrimSpace(tok.TokenType+" "+tok.AccessToken))
	}
	return t.base.RoundTrip(r)
}

// Login authenticates with email and password and returns a session-bound
// Client. Any failure wraps ErrAuth.
func Login(ctx context.Context, opts Options, email, password string) (*Client, Account, error) {
	opts = opts.withDefaults()
	if email == "" || password == "" {
		return nil, Account{}, fmt.Errorf("%w: email and password are required", ErrAuth)
	}

	base := opts.Transport
	plain := &http.Client{Transport: &authTransport{base: base, userAgent: opts.UserAgent}}
	src := oauth2.ReuseTokenSource(nil, &loginSource{
		ctx:      ctx,
		client:   plain,
		opts:     opts,
		email:    email,
		password: password,
	})

	tok, err := src.Token()
	if err != nil {
		return nil, Account{}, err
	}
	account := accountFromToken(tok)
	if account.UserID == "" {
		return nil, Account{}, fmt.Errorf("%w: no user id in response", ErrAuth)
	}

	c := &Client{
		httpClient: &http.Client{Transport: &authTransport{base: base, source: src, userAgent: opts.UserAgent}},
		opts:       opts,
		userID:     account.UserID,
	}
	return c, account, nil
}
