package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benvon/capture/internal/localstore"
	"github.com/benvon/capture/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	subscriberBuffer    = 16
	defaultProbeTimeout = 5 * time.Second
)

// OIDCOptions configures an OIDCProvider
type OIDCOptions struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	// TokenURL defaults to <issuer>/oauth2/token.
	TokenURL string
	// JWKSURL defaults to <issuer>/.well-known/jwks.json.
	JWKSURL string
	// SignupURL receives a JSON {email, password, client_id} POST; empty disables sign-up.
	SignupURL string
	// Audience, when set, must appear in the aud claim of verified tokens.
	Audience string
	// StorageKey is the local storage key holding the persisted session.
	StorageKey   string
	HTTPClient   *http.Client
	ProbeTimeout time.Duration
}

type subscriber struct {
	ch     chan Event
	closed bool
}

// OIDCProvider signs users in with the OAuth2 password grant against an OIDC issuer,
// verifies identity tokens against the issuer's JWKS and keeps the session in local storage.
type OIDCProvider struct {
	config    *oauth2.Config
	verifier  *Verifier
	signupURL string
	key       string
	kv        localstore.KeyValueStore
	client    *http.Client
	probe     time.Duration
	logger    *zap.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

var _ Provider = (*OIDCProvider)(nil)

// NewOIDCProvider creates a provider persisting its session in kv
func NewOIDCProvider(opts OIDCOptions, kv localstore.KeyValueStore, log *zap.Logger) (*OIDCProvider, error) {
	if opts.Issuer == "" || opts.ClientID == "" {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = zap.NewNop()
	}
	issuer := strings.TrimSuffix(opts.Issuer, "/")
	if opts.TokenURL == "" {
		opts.TokenURL = issuer + "/oauth2/token"
	}
	if opts.JWKSURL == "" {
		opts.JWKSURL = issuer + "/.well-known/jwks.json"
	}
	if opts.StorageKey == "" {
		opts.StorageKey = localstore.DefaultKeyPrefix + "auth-session"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}

	return &OIDCProvider{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Scopes:       []string{"openid", "email", "profile", "offline_access"},
			Endpoint: oauth2.Endpoint{
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier:  NewVerifier(NewKeySetCache(opts.HTTPClient), opts.JWKSURL, opts.Issuer, opts.Audience),
		signupURL: opts.SignupURL,
		key:       opts.StorageKey,
		kv:        kv,
		client:    opts.HTTPClient,
		probe:     opts.ProbeTimeout,
		logger:    log,
		subs:      make(map[*subscriber]struct{}),
	}, nil
}

// Subscribe probes the stored session in the background and delivers it as the
// initial event before any later transition reaches the subscriber.
func (p *OIDCProvider) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.probe)
		defer cancel()

		sess, err := p.Session(ctx)
		if err != nil {
			p.logger.Warn("initial_session_probe_failed", zap.String("error", logger.SanitizeError(err)))
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if sub.closed {
			return
		}
		sub.ch <- Event{Type: EventInitialSession, Session: sess}
		p.subs[sub] = struct{}{}
	}()

	return sub.ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		delete(p.subs, sub)
		close(sub.ch)
	}
}

func (p *OIDCProvider) broadcast(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for sub := range p.subs {
		select {
		case sub.ch <- ev:
		default:
			p.logger.Warn("auth_event_dropped", zap.String("event", string(ev.Type)))
		}
	}
}

// Session returns the stored session, refreshing it when the access token has expired.
// A stored session that can no longer be verified or refreshed is discarded.
func (p *OIDCProvider) Session(ctx context.Context) (*Session, error) {
	stored, err := p.load()
	if err != nil || stored == nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       stored.Expiry,
	}
	if tok.Valid() {
		sess, err := p.sessionFromToken(ctx, tok, stored.IDToken)
		if err == nil {
			return sess, nil
		}
		p.logger.Debug("stored_session_rejected", zap.String("error", logger.SanitizeError(err)))
	}

	if stored.RefreshToken == "" {
		p.forget()
		return nil, nil
	}

	refreshed, err := p.config.TokenSource(p.httpContext(ctx), &oauth2.Token{RefreshToken: stored.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// the issuer answered and refused the refresh token
			p.forget()
			return nil, nil
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	sess, err := p.sessionFromToken(ctx, refreshed, idTokenOf(refreshed, stored.IDToken))
	if err != nil {
		p.forget()
		return nil, fmt.Errorf("failed to verify refreshed session: %w", err)
	}
	if err := p.persist(sess); err != nil {
		p.logger.Warn("failed_to_persist_session", zap.Error(err))
	}

	p.logger.Info("session_refreshed", zap.String("user_id", logger.SanitizeUserID(sess.User.ID)))
	p.broadcast(Event{Type: EventTokenRefreshed, Session: sess})
	return sess, nil
}

// SignIn exchanges email and password for a session
func (p *OIDCProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	tok, err := p.config.PasswordCredentialsToken(p.httpContext(ctx), email, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			(retrieveErr.Response.StatusCode == http.StatusBadRequest || retrieveErr.Response.StatusCode == http.StatusUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	sess, err := p.sessionFromToken(ctx, tok, idTokenOf(tok, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	if err := p.persist(sess); err != nil {
		return nil, err
	}

	p.logger.Info("user_signed_in", zap.String("user_id", logger.SanitizeUserID(sess.User.ID)))
	p.broadcast(Event{Type: EventSignedIn, Session: sess})
	return sess, nil
}

// SignUp registers a new account and signs it in
func (p *OIDCProvider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	if p.signupURL == "" {
		return nil, fmt.Errorf("sign-up: %w", ErrNotConfigured)
	}

	body, err := json.Marshal(map[string]string{
		"email":     email,
		"password":  password,
		"client_id": p.config.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign-up request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.signupURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sign-up endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return p.SignIn(ctx, email, password)
}

// SignOut forgets the stored session and notifies subscribers
func (p *OIDCProvider) SignOut(ctx context.Context) error {
	if err := p.kv.Remove(p.key); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	p.logger.Info("user_signed_out")
	p.broadcast(Event{Type: EventSignedOut})
	return nil
}

func (p *OIDCProvider) sessionFromToken(ctx context.Context, tok *oauth2.Token, idToken string) (*Session, error) {
	identity := idToken
	if identity == "" {
		identity = tok.AccessToken
	}

	claims, err := p.verifier.Verify(ctx, identity)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		Expiry:       tok.Expiry,
		User:         User{ID: claims.Sub, Email: claims.Email},
	}, nil
}

func (p *OIDCProvider) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

func (p *OIDCProvider) load() (*Session, error) {
	raw, found, err := p.kv.Get(p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !found || raw == "" {
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.AccessToken == "" {
		p.logger.Warn("stored_session_discarded")
		p.forget()
		return nil, nil
	}
	return &sess, nil
}

func (p *OIDCProvider) persist(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := p.kv.Set(p.key, string(data)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (p *OIDCProvider) forget() {
	if err := p.kv.Remove(p.key); err != nil {
		p.logger.Warn("failed_to_remove_session", zap.Error(err))
	}
}

func idTokenOf(tok *oauth2.Token, fallback string) string {
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		return id
	}
	return fallback
}
