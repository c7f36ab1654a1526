package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/storage"
)

const (
	DefaultTitle = "学术难民"
	DefaultBio   = "这个家伙很懒，什么实验记录都没留下。"

	maxProfileTitle = 50
	maxProfileBio   = 500
	minPassword     = 6
)

var (
	passwordPattern = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\x{4e00}-\x{9fa5}]{2,20}$`)
)

type RegisterInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Username   string `json:"username"`
	InviteCode string `json:"inviteCode"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileInput - частичное обновление: nil-поля не меняются.
type ProfileInput struct {
	Title *string `json:"title"`
	Bio   *string `json:"bio"`
}

// UserView - учётная запись в ответах auth.
type UserView struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Title    string      `json:"title"`
	Bio      string      `json:"bio"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
}

func newUserView(u *domain.User) *UserView {
	return &UserView{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Title:    u.Title,
		Bio:      u.Bio,
		Role:     u.Role,
		JoinedAt: u.CreatedAt,
	}
}

type LoginResult struct {
	Token string    `json:"token"`
	User  *UserView `json:"user"`
}

type Store interface {
	storage.UserStore
	storage.InviteStore
}

// Service отвечает за регистрацию, вход и профиль текущего пользователя.
type Service struct {
	store      Store
	tokens     *Tokens
	bcryptCost int
}

func NewService(store Store, tokens *Tokens) *Service {
	return &Service{store: store, tokens: tokens, bcryptCost: bcrypt.DefaultCost}
}

func (in *RegisterInput) normalize() error {
	var fe apperr.FieldErrors

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		fe = append(fe, apperr.FieldError{Field: "email", Message: "invalid email address"})
	}
	if len(in.Password) < minPassword || !passwordPattern.MatchString(in.Password) {
		fe = append(fe, apperr.FieldError{Field: "password", Message: "password must be at least 6 characters of letters, digits or !@#$%^&*"})
	}
	in.Username = strings.TrimSpace(in.Username)
	if !usernamePattern.MatchString(in.Username) {
		fe = append(fe, apperr.FieldError{Field: "username", Message: "username must be 2-20 letters, digits, underscores or CJK characters"})
	}
	in.InviteCode = strings.TrimSpace(in.InviteCode)
	if in.InviteCode == "" {
		fe = append(fe, apperr.FieldError{Field: "inviteCode", Message: "invite code is required"})
	}

	if len(fe) > 0 {
		return apperr.WrapValidation(fe, "request validation failed")
	}
	return nil
}

// Register заводит пользователя по действующему инвайт-коду.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if err := in.normalize(); err != nil {
		return err
	}

	active, err := s.store.IsInviteCodeActive(ctx, in.InviteCode)
	if err != nil {
		return err
	}
	if !active {
		return apperr.New(apperr.KindValidation, "INVALID_INVITE_CODE", "invalid invite code")
	}
	if err := s.ensureFree(ctx, in.Email, in.Username); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return apperr.WrapInternal(err, "failed to hash password")
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: string(hash),
		Username:     in.Username,
		Title:        DefaultTitle,
		Bio:          DefaultBio,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.store.CreateUser(ctx, u); err != nil {
		return err
	}

	log.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("user registered")
	return nil
}

func (s *Service) ensureFree(ctx context.Context, email, username string) error {
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return apperr.New(apperr.KindConflict, "EMAIL_EXISTS", "email already registered")
	} else if !apperr.IsNotFound(err) {
		return err
	}
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return apperr.New(apperr.KindConflict, "USERNAME_EXISTS", "username already taken")
	} else if !apperr.IsNotFound(err) {
		return err
	}
	return nil
}

// Login проверяет пароль и выдаёт токен. Заблокированные пользователи не входят.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	badCredentials := apperr.New(apperr.KindUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")

	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, badCredentials
		}
		return nil, err
	}
	if u.IsBanned {
		return nil, apperr.New(apperr.KindForbidden, "USER_BANNED", "account is banned")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, badCredentials
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: newUserView(u)}, nil
}

func (s *Service) Me(ctx context.Context, id *domain.Identity) (*UserView, error) {
	if id == nil {
		return nil, apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	u, err := s.store.GetUserByID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return newUserView(u), nil
}

func (s *Service) UpdateProfile(ctx context.Context, id *domain.Identity, in ProfileInput) error {
	if id == nil {
		return apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	var fe apperr.FieldErrors
	if in.Title != nil && utf8.RuneCountInString(*in.Title) > maxProfileTitle {
		fe = append(fe, apperr.FieldError{Field: "title", Message: "title must be at most 50 characters"})
	}
	if in.Bio != nil && utf8.RuneCountInString(*in.Bio) > maxProfileBio {
		fe = append(fe, apperr.FieldError{Field: "bio", Message: "bio must be at most 500 characters"})
	}
	if len(fe) > 0 {
		return apperr.WrapValidation(fe, "request validation failed")
	}
	return s.store.UpdateProfile(ctx, id.UserID, in.Title, in.Bio)
}
