package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quizzz-service/internal/domain"
	"quizzz-service/internal/infra/memory"

	"golang.org/x/crypto/bcrypt"
)

func newTestProvider(t *testing.T, opts ...Option) (*Provider, *memory.DocumentStore) {
	t.Helper()
	store := memory.NewDocumentStore()
	opts = append([]Option{WithHasher(&BcryptHasher{cost: bcrypt.MinCost})}, opts...)
	p := NewProvider(store, NewTokenIssuer("test-secret-test-secret-test-secret", time.Hour), memory.NewTokenStore(), opts...)
	return p, store
}

func TestRegisterAndSignIn(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	session, err := p.Register(ctx, "", "Ada.Lovelace@Example.com", "engine1843")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id := session.Identity
	if id.Email != "ada.lovelace@example.com" || id.Username != "ada.lovelace" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if id.DisplayName != DefaultDisplayName || id.PhotoURL != DefaultPhotoURL {
		t.Fatalf("expected defaults, got %+v", id)
	}

	signedIn, err := p.SignIn(ctx, Credentials{Method: MethodPassword, Email: "ada.lovelace@example.com", Password: "engine1843"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if signedIn.Identity.UID != id.UID {
		t.Fatalf("expected same uid, got %s vs %s", signedIn.Identity.UID, id.UID)
	}

	got, err := p.Identify(ctx, signedIn.Token)
	if err != nil || got.UID != id.UID {
		t.Fatalf("identify: %+v %v", got, err)
	}
}

func TestRegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	if _, err := p.Register(ctx, "Ann", "ann@example.com", "short1"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if _, err := p.Register(ctx, "Ann", "ann@example.com", strings.Repeat("pass1234", 10)); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected weak password for an 80 byte password, got %v", err)
	}
	if _, err := p.Register(ctx, "Ann", "not-an-email", "password1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := p.Register(ctx, "Ann", "ann@example.com", "password1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := p.Register(ctx, "Ann", "ANN@example.com", "password2"); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)
	_, _ = p.Register(ctx, "Ann", "ann@example.com", "password1")

	if _, err := p.SignIn(ctx, Credentials{Email: "ann@example.com", Password: "password2"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := p.SignIn(ctx, Credentials{Email: "nobody@example.com", Password: "password1"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestGuestSignIn(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	session, err := p.SignIn(ctx, Credentials{Method: MethodGuest})
	if err != nil {
		t.Fatalf("guest sign in: %v", err)
	}
	if !session.Identity.Anonymous || session.Identity.DisplayName != "Guest" {
		t.Fatalf("unexpected guest identity %+v", session.Identity)
	}

	closed, _ := newTestProvider(t, WithGuests(false))
	if _, err := closed.SignIn(ctx, Credentials{Method: MethodGuest}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected guests refused, got %v", err)
	}
}

func TestSignOutRevokesAndNotifies(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)
	session, _ := p.Register(ctx, "Ann", "ann@example.com", "password1")

	var changes []domain.IdentityChange
	unsubscribe := p.OnIdentityChange(func(c domain.IdentityChange) { changes = append(changes, c) })
	defer unsubscribe()

	if err := p.SignOut(ctx, session.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if len(changes) != 1 || changes[0].UID != session.Identity.UID || changes[0].Identity != nil {
		t.Fatalf("expected sign-out change, got %+v", changes)
	}
	if _, err := p.Identify(ctx, session.Token); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected revoked token rejected, got %v", err)
	}
}

func TestUpdateProfileNotifiesListeners(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)
	session, _ := p.Register(ctx, "Ann", "ann@example.com", "password1")

	var got *domain.Identity
	unsubscribe := p.OnIdentityChange(func(c domain.IdentityChange) { got = c.Identity })

	name := "Annie"
	identity, err := p.UpdateProfile(ctx, session.Identity.UID, ProfileUpdate{DisplayName: &name})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if identity.DisplayName != "Annie" || got == nil || got.DisplayName != "Annie" {
		t.Fatalf("expected new name, got %+v / %+v", identity, got)
	}

	unsubscribe()
	got = nil
	_, _ = p.UpdateProfile(ctx, session.Identity.UID, ProfileUpdate{DisplayName: &name})
	if got != nil {
		t.Fatalf("listener called after unsubscribe")
	}

	empty := " "
	if _, err := p.UpdateProfile(ctx, session.Identity.UID, ProfileUpdate{DisplayName: &empty}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)
	session, _ := p.Register(ctx, "Ann", "ann@example.com", "password1")
	uid := session.Identity.UID

	if err := p.ChangePassword(ctx, uid, "wrong1234", "password2"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := p.ChangePassword(ctx, uid, "password1", "onlyletters"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if err := p.ChangePassword(ctx, uid, "password1", strings.Repeat("x9", 40)); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected weak password for a 80 byte password, got %v", err)
	}
	if err := p.ChangePassword(ctx, uid, "password1", "password2"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := p.SignIn(ctx, Credentials{Email: "ann@example.com", Password: "password2"}); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}

func TestIdentifyRejectsForeignTokens(t *testing.T) {
	p, _ := newTestProvider(t)
	other := NewTokenIssuer("another-secret-another-secret-1234", time.Hour)
	token, _, _ := other.Issue("u1", false)
	if _, err := p.Identify(context.Background(), token); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	if _, err := p.Identify(context.Background(), "garbage"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}
