package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory implementation of repository.UserRepository.
// A hand-written fake shows exactly what the repository is expected to do.
type fakeUserRepo struct {
	users  map[int64]*model.User
	nextID int64
	// set to a non-nil error to simulate a database failure
	createErr   error
	getEmailErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email || u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now().UTC()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getEmailErr != nil {
		return nil, f.getEmailErr
	}
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) ListUsers(context.Context, repository.ListOptions) ([]model.User, int, error) {
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUserRepo) SetAvatar(_ context.Context, id int64, avatar string) (string, error) {
	u, ok := f.users[id]
	if !ok {
		return "", apperror.NotFound("user", id)
	}
	previous := u.Avatar
	u.Avatar = avatar
	return previous, nil
}

func (f *fakeUserRepo) AvatarKeys(context.Context) ([]string, error) {
	var keys []string
	for _, u := range f.users {
		if u.Avatar != "" {
			keys = append(keys, u.Avatar)
		}
	}
	return keys, nil
}

// fakeRevoker records revoked token ids.
type fakeRevoker struct {
	revoked map[string]time.Time
	err     error
}

func (r *fakeRevoker) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if r.err != nil {
		return r.err
	}
	r.revoked[tokenID] = expiresAt
	return nil
}

func (r *fakeRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := r.revoked[tokenID]
	return ok, nil
}

type authFixture struct {
	svc     *AuthService
	repo    *fakeUserRepo
	tokens  *auth.TokenService
	revoker *fakeRevoker
}

// newTestAuthService returns an AuthService wired with fake dependencies.
func newTestAuthService(t *testing.T) *authFixture {
	t.Helper()

	repo := newFakeUserRepo()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	revoker := &fakeRevoker{revoked: map[string]time.Time{}}

	// Cost 4 is the bcrypt minimum and keeps tests fast.
	passwords := auth.NewPasswordServiceForTest(4)

	return &authFixture{
		svc:     NewAuthService(repo, tokens, passwords, revoker, quietLogger()),
		repo:    repo,
		tokens:  tokens,
		revoker: revoker,
	}
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:     "vasya@example.com",
		Username:  "vasya",
		FirstName: "Vasya",
		LastName:  "Pupkin",
		Password:  "s3cret-pass",
	}
}

func fieldOf(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// =========================================================================
// Register TESTS
// =========================================================================

func TestRegister_CreatesUserWithHashedPassword(t *testing.T) {
	f := newTestAuthService(t)

	user, err := f.svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.ID == 0 {
		t.Error("expected an assigned ID")
	}
	if user.PasswordHash == "" || user.PasswordHash == "s3cret-pass" {
		t.Errorf("PasswordHash = %q, want a bcrypt hash", user.PasswordHash)
	}
	if user.IsStaff || user.IsSuperuser {
		t.Error("new accounts must not be privileged")
	}
}

func TestRegister_TrimsWhitespace(t *testing.T) {
	f := newTestAuthService(t)
	in := validRegistration()
	in.Email = "  vasya@example.com "
	in.FirstName = " Vasya"

	user, err := f.svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "vasya@example.com" || user.FirstName != "Vasya" {
		t.Errorf("got email %q first name %q", user.Email, user.FirstName)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"missing email", func(in *RegisterInput) { in.Email = "" }, "email"},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"display name email", func(in *RegisterInput) { in.Email = "Vasya <vasya@example.com>" }, "email"},
		{"email too long", func(in *RegisterInput) { in.Email = strings.Repeat("a", 250) + "@example.com" }, "email"},
		{"missing username", func(in *RegisterInput) { in.Username = "" }, "username"},
		{"username with space", func(in *RegisterInput) { in.Username = "va sya" }, "username"},
		{"username too long", func(in *RegisterInput) { in.Username = strings.Repeat("v", 151) }, "username"},
		{"reserved username", func(in *RegisterInput) { in.Username = "me" }, "username"},
		{"missing first name", func(in *RegisterInput) { in.FirstName = " " }, "first_name"},
		{"missing last name", func(in *RegisterInput) { in.LastName = "" }, "last_name"},
		{"missing password", func(in *RegisterInput) { in.Password = "" }, "password"},
		{"password too long", func(in *RegisterInput) { in.Password = strings.Repeat("p", 73) }, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestAuthService(t)
			in := validRegistration()
			tt.mutate(&in)

			_, err := f.svc.Register(context.Background(), in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want ErrValidation", err)
			}
			if got := fieldOf(err); got != tt.field {
				t.Errorf("field = %q, want %q", got, tt.field)
			}
		})
	}
}

func TestRegister_DuplicateEmailOrUsername(t *testing.T) {
	f := newTestAuthService(t)
	if _, err := f.svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	sameEmail := validRegistration()
	sameEmail.Username = "other"
	_, err := f.svc.Register(context.Background(), sameEmail)
	if got := fieldOf(err); got != "email" {
		t.Errorf("duplicate email: field = %q, err = %v", got, err)
	}

	sameUsername := validRegistration()
	sameUsername.Email = "other@example.com"
	_, err = f.svc.Register(context.Background(), sameUsername)
	if got := fieldOf(err); got != "username" {
		t.Errorf("duplicate username: field = %q, err = %v", got, err)
	}
}

func TestRegister_RepositoryError(t *testing.T) {
	f := newTestAuthService(t)
	f.repo.createErr = errors.New("database is locked")

	_, err := f.svc.Register(context.Background(), validRegistration())
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, apperror.ErrValidation) {
		t.Error("a storage failure must not look like a validation error")
	}
}

// =========================================================================
// Login / Logout TESTS
// =========================================================================

func TestLogin_IssuesValidToken(t *testing.T) {
	f := newTestAuthService(t)
	user, err := f.svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := f.svc.Login(context.Background(), "vasya@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	claims, err := f.tokens.Validate(result.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("claims.UserID = %d, want %d", claims.UserID, user.ID)
	}
}

func TestLogin_BadCredentialsLookTheSame(t *testing.T) {
	f := newTestAuthService(t)
	if _, err := f.svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, wrongPassword := f.svc.Login(context.Background(), "vasya@example.com", "nope")
	_, unknownEmail := f.svc.Login(context.Background(), "ghost@example.com", "s3cret-pass")

	for _, err := range []error{wrongPassword, unknownEmail} {
		if !errors.Is(err, apperror.ErrValidation) {
			t.Fatalf("Login() error = %v, want ErrValidation", err)
		}
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Errorf("errors differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestLogin_PasswordlessAccountCannotLogIn(t *testing.T) {
	f := newTestAuthService(t)
	_, err := f.svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "octocat", Email: "octocat@github.com"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	_, err = f.svc.Login(context.Background(), "octocat@github.com", "")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Login() error = %v, want ErrValidation", err)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newTestAuthService(t)
	token, err := f.tokens.Generate(7)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	claims, err := f.tokens.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if err := f.svc.Logout(context.Background(), claims); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, ok := f.revoker.revoked[claims.TokenID]; !ok {
		t.Error("token id was not revoked")
	}

	if err := f.svc.Logout(context.Background(), nil); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Logout(nil) error = %v, want ErrUnauthorized", err)
	}
}

func TestLogout_RevokerError(t *testing.T) {
	f := newTestAuthService(t)
	f.revoker.err = errors.New("redis down")

	err := f.svc.Logout(context.Background(), &auth.Claims{UserID: 1, TokenID: "abc", ExpiresAt: time.Now().Add(time.Hour)})
	if err == nil {
		t.Fatal("expected an error")
	}
}

// =========================================================================
// SetPassword TESTS
// =========================================================================

func TestSetPassword(t *testing.T) {
	f := newTestAuthService(t)
	user, err := f.svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	ctx := context.Background()

	err = f.svc.SetPassword(ctx, user.ID, "wrong", "n3w-pass")
	if got := fieldOf(err); got != "current_password" {
		t.Fatalf("wrong current password: field = %q, err = %v", got, err)
	}
	if got := fieldOf(f.svc.SetPassword(ctx, user.ID, "s3cret-pass", "")); got != "new_password" {
		t.Errorf("empty new password: field = %q", got)
	}

	if err := f.svc.SetPassword(ctx, user.ID, "s3cret-pass", "n3w-pass"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if _, err := f.svc.Login(ctx, "vasya@example.com", "n3w-pass"); err != nil {
		t.Errorf("Login with new password: %v", err)
	}
	if _, err := f.svc.Login(ctx, "vasya@example.com", "s3cret-pass"); err == nil {
		t.Error("old password still works")
	}
}

// =========================================================================
// LoginOrRegisterGitHub TESTS
// =========================================================================

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	f := newTestAuthService(t)

	result, err := f.svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID:    42,
		Login: "octocat",
		Name:  "Mona Lisa Octocat",
		Email: "octocat@github.com",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	u := result.User
	if u.Username != "octocat" {
		t.Errorf("Username = %q, want octocat", u.Username)
	}
	if u.FirstName != "Mona" || u.LastName != "Lisa Octocat" {
		t.Errorf("name = %q %q", u.FirstName, u.LastName)
	}
	if u.PasswordHash != "" {
		t.Error("GitHub accounts are created without a password")
	}
	if result.Token == "" {
		t.Error("expected a token")
	}
}

func TestLoginOrRegisterGitHub_ExistingEmailSignsIn(t *testing.T) {
	f := newTestAuthService(t)
	registered, err := f.svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := f.svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 9, Login: "vasya-gh", Email: "vasya@example.com",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if result.User.ID != registered.ID {
		t.Errorf("signed in as %d, want %d", result.User.ID, registered.ID)
	}
	if len(f.repo.users) != 1 {
		t.Errorf("expected no new account, have %d", len(f.repo.users))
	}
}

func TestLoginOrRegisterGitHub_UsernameCollision(t *testing.T) {
	f := newTestAuthService(t)
	if _, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "someone@example.com", Username: "octocat", FirstName: "S", LastName: "O", Password: "pw",
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := f.svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 42, Login: "octocat", Email: "octocat@github.com",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if !strings.HasPrefix(result.User.Username, "octocat-") {
		t.Errorf("Username = %q, want an octocat- suffix", result.User.Username)
	}
	if result.User.FirstName != "octocat" {
		t.Errorf("FirstName = %q, want the login as fallback", result.User.FirstName)
	}
}

func TestLoginOrRegisterGitHub_Errors(t *testing.T) {
	f := newTestAuthService(t)

	if _, err := f.svc.LoginOrRegisterGitHub(context.Background(), nil); err == nil {
		t.Error("nil GitHub user: expected an error")
	}
	if _, err := f.svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "x"}); err == nil {
		t.Error("missing email: expected an error")
	}

	f.repo.getEmailErr = errors.New("connection refused")
	if _, err := f.svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "x", Email: "x@example.com"}); err == nil {
		t.Error("repository failure: expected an error")
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		full, fallback, first, last string
	}{
		{"Mona Lisa Octocat", "octocat", "Mona", "Lisa Octocat"},
		{"Mona", "octocat", "Mona", "Mona"},
		{"  ", "octocat", "octocat", "octocat"},
	}
	for _, tt := range tests {
		first, last := splitName(tt.full, tt.fallback)
		if first != tt.first || last != tt.last {
			t.Errorf("splitName(%q) = %q, %q; want %q, %q", tt.full, first, last, tt.first, tt.last)
		}
	}
}
