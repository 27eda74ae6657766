package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"example.com/hydrofarm/services/farm/internal/core"
)

// fakeMailer records outgoing mail instead of sending it.
type fakeMailer struct {
	codes  map[string]string
	tokens map[string]string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		codes:  make(map[string]string),
		tokens: make(map[string]string),
	}
}

func (m *fakeMailer) SendVerificationCode(ctx context.Context, to, name, code string) error {
	m.codes[to] = code
	return nil
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	m.tokens[to] = token
	return nil
}

func newAuthService(store *fakeStore, mailer core.Mailer) *core.AuthService {
	return core.NewAuthService(store, mailer, "test-secret", time.Hour, testLogger())
}

func registerAndVerify(t *testing.T, svc *core.AuthService, mailer *fakeMailer, email, password string) *core.User {
	t.Helper()
	ctx := context.Background()

	if _, err := svc.Register(ctx, core.RegisterInput{
		FullName: "Ada Grower",
		Email:    email,
		Password: password,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := svc.VerifyEmail(ctx, email, mailer.codes[email])
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	return user
}

func TestRegisterAndLoginFlow(t *testing.T) {
	store := newFakeStore()
	mailer := newFakeMailer()
	svc := newAuthService(store, mailer)
	ctx := context.Background()

	user := registerAndVerify(t, svc, mailer, "ada@farm.test", "hunter2hunter2")
	if !user.EmailVerified {
		t.Fatal("user not marked verified")
	}
	if user.PasswordHash == "hunter2hunter2" {
		t.Fatal("password stored in plain text")
	}

	token, got, err := svc.Login(ctx, "ada@farm.test", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("login returned user %s, want %s", got.ID, user.ID)
	}

	subject, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if subject != user.ID {
		t.Errorf("token subject = %s, want %s", subject, user.ID)
	}
}

func TestLoginRejectsUnverified(t *testing.T) {
	store := newFakeStore()
	mailer := newFakeMailer()
	svc := newAuthService(store, mailer)
	ctx := context.Background()

	if _, err := svc.Register(ctx, core.RegisterInput{
		FullName: "Ada Grower",
		Email:    "ada@farm.test",
		Password: "hunter2hunter2",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, _, err := svc.Login(ctx, "ada@farm.test", "hunter2hunter2")
	if !errors.Is(err, core.ErrEmailNotVerified) {
		t.Errorf("got %v, want ErrEmailNotVerified", err)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	store := newFakeStore()
	mailer := newFakeMailer()
	svc := newAuthService(store, mailer)
	ctx := context.Background()
	registerAndVerify(t, svc, mailer, "ada@farm.test", "hunter2hunter2")

	// Wrong password and unknown email look identical to the caller.
	if _, _, err := svc.Login(ctx, "ada@farm.test", "wrong-password"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@farm.test", "hunter2hunter2"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newFakeStore()
	mailer := newFakeMailer()
	svc := newAuthService(store, mailer)
	ctx := context.Background()

	input := core.RegisterInput{
		FullName: "Ada Grower",
		Email:    "ada@farm.test",
		Password: "hunter2hunter2",
	}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, input); !core.IsConflict(err) {
		t.Errorf("duplicate email: got %v, want conflict", err)
	}
}

func TestVerifyEmailWrongCode(t *testing.T) {
	store := newFakeStore()
	mailer := newFakeMailer()
	svc := newAuthService(store, mailer)
	ctx := context.Background()

	if _, err := svc.Register(ctx, core.RegisterInput{
		FullName: "Ada Grower",
		Email:    "ada@farm.test",
		Password: "hunter2hunter2",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.VerifyEmail(ctx, "ada@farm.test", "000000x"); !errors.Is(err, core.ErrInvalidOTP) {
		t.Errorf("wrong code: got %v, want ErrInvalidOTP", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	store := newFakeStore()
	mailer := newFakeMailer()
	svc := newAuthService(store, mailer)
	ctx := context.Background()
	registerAndVerify(t, svc, mailer, "ada@farm.test", "hunter2hunter2")

	if err := svc.RequestPasswordReset(ctx, "ada@farm.test"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := mailer.tokens["ada@farm.test"]
	if token == "" {
		t.Fatal("no reset token mailed")
	}

	if err := svc.ResetPassword(ctx, "ada@farm.test", "bogus-token", "newpassword1"); !errors.Is(err, core.ErrInvalidToken) {
		t.Errorf("bogus token: got %v, want ErrInvalidToken", err)
	}

	if err := svc.ResetPassword(ctx, "ada@farm.test", token, "newpassword1"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	// Old password dead, new one works; token single-use.
	if _, _, err := svc.Login(ctx, "ada@farm.test", "hunter2hunter2"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("old password still valid: %v", err)
	}
	if _, _, err := svc.Login(ctx, "ada@farm.test", "newpassword1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if err := svc.ResetPassword(ctx, "ada@farm.test", token, "anotherpass1"); !errors.Is(err, core.ErrInvalidToken) {
		t.Errorf("token reuse: got %v, want ErrInvalidToken", err)
	}
}

func TestRequestPasswordResetUnknownEmailSilent(t *testing.T) {
	store := newFakeStore()
	mailer := newFakeMailer()
	svc := newAuthService(store, mailer)

	if err := svc.RequestPasswordReset(context.Background(), "ghost@farm.test"); err != nil {
		t.Errorf("unknown email should not error: %v", err)
	}
	if len(mailer.tokens) != 0 {
		t.Error("mail sent for unknown account")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store, newFakeMailer())

	if _, err := svc.ValidateToken("not.a.jwt"); !errors.Is(err, core.ErrInvalidToken) {
		t.Errorf("got %v, want ErrInvalidToken", err)
	}
}
