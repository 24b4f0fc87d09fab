package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumen-shop/internal/constants"
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/repository"
)

// AccountStatusKind 账户状态标签
type AccountStatusKind string

const (
	AccountActive   AccountStatusKind = "active"
	AccountLocked   AccountStatusKind = "locked"
	AccountNotFound AccountStatusKind = "not_found"
)

// AccountStatus 账户状态查询结果。
// NotFound 与 Locked 是正常业务结果而非错误，User 仅在 Active/Locked 时非空。
type AccountStatus struct {
	Kind AccountStatusKind
	User *models.User
}

// VerifiedField 可验证字段枚举
type VerifiedField string

const (
	VerifiedFieldEmail VerifiedField = "email"
	VerifiedFieldPhone VerifiedField = "phone"
)

// verifiedFieldAccessors 字段枚举到取值函数的映射，新增字段时在此登记。
var verifiedFieldAccessors = map[VerifiedField]func(*models.User) *time.Time{
	VerifiedFieldEmail: func(u *models.User) *time.Time { return u.EmailVerifiedAt },
	VerifiedFieldPhone: func(u *models.User) *time.Time { return u.PhoneVerifiedAt },
}

// RegisterInput 注册输入
type RegisterInput struct {
	Email    string
	Password string
	Phone    string
}

// UserService 用户服务
type UserService struct {
	userRepo  repository.UserRepository
	jwtSecret string
	jwtTTL    time.Duration
}

// NewUserService 创建用户服务
func NewUserService(userRepo repository.UserRepository, jwtSecret string, jwtTTL time.Duration) *UserService {
	if jwtTTL <= 0 {
		jwtTTL = 24 * time.Hour
	}
	return &UserService{userRepo: userRepo, jwtSecret: jwtSecret, jwtTTL: jwtTTL}
}

// Register 注册新用户
func (s *UserService) Register(input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len(input.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	existing, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(input.Phone),
		Status:       constants.UserStatusActive,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate 校验邮箱密码并返回用户
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Status == constants.UserStatusLocked {
		return nil, ErrUserLocked
	}
	now := time.Now()
	_ = s.userRepo.UpdateLastLogin(user.ID, now)
	user.LastLoginAt = &now
	return user, nil
}

// AccountStatusOf 查询账户状态。
func (s *UserService) AccountStatusOf(userID uint) (AccountStatus, error) {
	if userID == 0 {
		return AccountStatus{Kind: AccountNotFound}, nil
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return AccountStatus{}, err
	}
	if user == nil {
		return AccountStatus{Kind: AccountNotFound}, nil
	}
	if user.Status == constants.UserStatusLocked {
		return AccountStatus{Kind: AccountLocked, User: user}, nil
	}
	return AccountStatus{Kind: AccountActive, User: user}, nil
}

// IsVerified 判断用户指定字段是否已验证
func (s *UserService) IsVerified(user *models.User, field VerifiedField) (bool, error) {
	if user == nil {
		return false, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	accessor, ok := verifiedFieldAccessors[field]
	if !ok {
		return false, fmt.Errorf("%w: unknown verified field %q", ErrInvalidInput, string(field))
	}
	at := accessor(user)
	return at != nil && !at.IsZero(), nil
}

// IssueToken 签发用户 JWT
func (s *UserService) IssueToken(user *models.User) (string, time.Time, error) {
	if user == nil || user.ID == 0 {
		return "", time.Time{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	expiresAt := time.Now().Add(s.jwtTTL)
	claims := jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", user.ID),
		"email": user.Email,
		"exp":   expiresAt.Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
