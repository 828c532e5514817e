package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"quizzz-service/internal/app"
	"quizzz-service/internal/domain"
)

const (
	DefaultDisplayName = "Guest"
	DefaultPhotoURL    = "/profile.png"
)

// Method selects how SignIn authenticates.
type Method string

const (
	MethodPassword Method = "password"
	MethodGuest    Method = "guest"
)

type Credentials struct {
	Method   Method
	Email    string
	Password string
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Identity  domain.Identity `json:"identity"`
}

// ProfileUpdate changes only the non-nil fields.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// TokenStore remembers revoked token ids until they expire.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// PasswordHasher hashes and checks user passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePassword(hash, password string) error
}

// user is the shape of a users document.
type user struct {
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Username      string    `json:"username"`
	PhotoURL      string    `json:"photoURL"`
	EmailVerified bool      `json:"emailVerified"`
	Anonymous     bool      `json:"anonymous"`
	PasswordHash  string    `json:"passwordHash,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Provider is the identity provider: accounts live in the users collection of the
// document store and sessions are signed tokens.
type Provider struct {
	store      app.DocumentStore
	hasher     PasswordHasher
	tokens     *TokenIssuer
	revoked    TokenStore
	allowGuest bool
	now        func() time.Time
	log        *slog.Logger

	// registerMu keeps the email uniqueness check and the insert together.
	registerMu sync.Mutex

	mu        sync.Mutex
	listeners map[int]func(domain.IdentityChange)
	nextID    int
}

type Option func(*Provider)

func WithGuests(allowed bool) Option {
	return func(p *Provider) { p.allowGuest = allowed }
}

func WithHasher(h PasswordHasher) Option {
	return func(p *Provider) { p.hasher = h }
}

func NewProvider(store app.DocumentStore, tokens *TokenIssuer, revoked TokenStore, opts ...Option) *Provider {
	p := &Provider{
		store:      store,
		hasher:     NewBcryptHasher(),
		tokens:     tokens,
		revoked:    revoked,
		allowGuest: true,
		now:        time.Now,
		log:        slog.Default(),
		listeners:  make(map[int]func(domain.IdentityChange)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register creates an email/password account and signs it in.
func (p *Provider) Register(ctx context.Context, name, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Session{}, err
	}
	hash, err := p.hasher.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	p.registerMu.Lock()
	defer p.registerMu.Unlock()

	existing, err := p.store.Query(ctx, domain.CollectionUsers, domain.Filter{Field: "email", Equals: email})
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if len(existing) > 0 {
		return Session{}, domain.ErrEmailTaken
	}

	u := user{
		Email:        email,
		Name:         strings.TrimSpace(name),
		Username:     usernameFromEmail(email),
		PhotoURL:     DefaultPhotoURL,
		PasswordHash: hash,
		CreatedAt:    p.now().UTC(),
	}
	if u.Name == "" {
		u.Name = DefaultDisplayName
	}
	uid, err := p.store.Create(ctx, domain.CollectionUsers, userFields(u))
	if err != nil {
		return Session{}, fmt.Errorf("%w: create user: %v", domain.ErrStoreWrite, err)
	}
	p.log.Info("user registered", "uid", uid)
	return p.issue(uid, u)
}

// SignIn authenticates with the given method. Guest sign-in creates a fresh anonymous
// account every time.
func (p *Provider) SignIn(ctx context.Context, creds Credentials) (Session, error) {
	switch creds.Method {
	case MethodGuest:
		return p.signInGuest(ctx)
	case MethodPassword, "":
		return p.signInPassword(ctx, creds.Email, creds.Password)
	default:
		return Session{}, fmt.Errorf("%w: unknown sign-in method %q", domain.ErrInvalidCredentials, creds.Method)
	}
}

func (p *Provider) signInPassword(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	docs, err := p.store.Query(ctx, domain.CollectionUsers, domain.Filter{Field: "email", Equals: email})
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if len(docs) == 0 {
		return Session{}, domain.ErrInvalidCredentials
	}
	uid := docs[0].ID
	u, err := decodeUser(docs[0])
	if err != nil {
		return Session{}, err
	}
	if u.PasswordHash == "" || p.hasher.ComparePassword(u.PasswordHash, password) != nil {
		return Session{}, domain.ErrInvalidCredentials
	}
	return p.issue(uid, u)
}

func (p *Provider) signInGuest(ctx context.Context) (Session, error) {
	if !p.allowGuest {
		return Session{}, fmt.Errorf("%w: guest sign-in is disabled", domain.ErrInvalidCredentials)
	}
	u := user{
		Name:      DefaultDisplayName,
		PhotoURL:  DefaultPhotoURL,
		Anonymous: true,
		CreatedAt: p.now().UTC(),
	}
	uid, err := p.store.Create(ctx, domain.CollectionUsers, userFields(u))
	if err != nil {
		return Session{}, fmt.Errorf("%w: create guest: %v", domain.ErrStoreWrite, err)
	}
	return p.issue(uid, u)
}

// Identify resolves a bearer token to the current identity.
func (p *Provider) Identify(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrNotAuthenticated, err)
	}
	if p.revoked != nil {
		revoked, err := p.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return domain.Identity{}, err
		}
		if revoked {
			return domain.Identity{}, fmt.Errorf("%w: session ended", domain.ErrNotAuthenticated)
		}
	}
	identity, err := p.lookup(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Identity{}, fmt.Errorf("%w: unknown user", domain.ErrNotAuthenticated)
	}
	return identity, err
}

// SignOut revokes the token and tells listeners the identity is gone.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotAuthenticated, err)
	}
	if p.revoked != nil {
		if err := p.revoked.Revoke(ctx, claims.ID, p.tokens.remaining(claims)); err != nil {
			return err
		}
	}
	p.emit(domain.IdentityChange{UID: claims.Subject})
	return nil
}

func (p *Provider) UpdateProfile(ctx context.Context, uid string, update ProfileUpdate) (domain.Identity, error) {
	fields := map[string]any{}
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" {
			return domain.Identity{}, domain.NewValidationError("displayName", "Display name must not be empty.")
		}
		fields["name"] = name
	}
	if update.PhotoURL != nil {
		fields["photoURL"] = strings.TrimSpace(*update.PhotoURL)
	}
	if len(fields) > 0 {
		if err := p.store.Update(ctx, domain.CollectionUsers, uid, fields); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Identity{}, err
			}
			return domain.Identity{}, fmt.Errorf("%w: update profile: %v", domain.ErrStoreWrite, err)
		}
	}
	identity, err := p.lookup(ctx, uid)
	if err != nil {
		return domain.Identity{}, err
	}
	changed := identity
	p.emit(domain.IdentityChange{UID: uid, Identity: &changed})
	return identity, nil
}

func (p *Provider) ChangePassword(ctx context.Context, uid, oldPassword, newPassword string) error {
	doc, err := p.store.Get(ctx, domain.CollectionUsers, uid)
	if err != nil {
		return err
	}
	u, err := decodeUser(doc)
	if err != nil {
		return err
	}
	if u.Anonymous || u.PasswordHash == "" || p.hasher.ComparePassword(u.PasswordHash, oldPassword) != nil {
		return domain.ErrInvalidCredentials
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := p.hasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := p.store.Update(ctx, domain.CollectionUsers, uid, map[string]any{"passwordHash": hash}); err != nil {
		return fmt.Errorf("%w: change password: %v", domain.ErrStoreWrite, err)
	}
	return nil
}

// OnIdentityChange registers fn for sign-outs and profile changes. The returned function
// unregisters it.
func (p *Provider) OnIdentityChange(fn func(domain.IdentityChange)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) emit(change domain.IdentityChange) {
	p.mu.Lock()
	fns := make([]func(domain.IdentityChange), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}

func (p *Provider) issue(uid string, u user) (Session, error) {
	token, claims, err := p.tokens.Issue(uid, u.Anonymous)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Identity: u.identity(uid)}, nil
}

func (p *Provider) lookup(ctx context.Context, uid string) (domain.Identity, error) {
	doc, err := p.store.Get(ctx, domain.CollectionUsers, uid)
	if err != nil {
		return domain.Identity{}, err
	}
	u, err := decodeUser(doc)
	if err != nil {
		return domain.Identity{}, err
	}
	return u.identity(uid), nil
}

func (u user) identity(uid string) domain.Identity {
	name := u.Name
	if name == "" {
		name = DefaultDisplayName
	}
	photo := u.PhotoURL
	if photo == "" {
		photo = DefaultPhotoURL
	}
	return domain.Identity{
		UID:           uid,
		DisplayName:   name,
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		PhotoURL:      photo,
		Anonymous:     u.Anonymous,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.NewValidationError("email", "Please enter a valid email address.")
	}
	return email, nil
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
