package service

import (
	"arithmo_backend/internal/config"
	"arithmo_backend/internal/model"
	"arithmo_backend/internal/repository"
	"arithmo_backend/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

// Signup 注册新账号，返回令牌和仅展示一次的恢复码。
func (s *AuthService) Signup(username, password string) (token string, recoveryCode string, err error) {
	_, err = s.UserRepo.FindByUsername(username)
	if err == nil {
		return "", "", util.ErrUsernameTaken
	} else if err != gorm.ErrRecordNotFound {
		return "", "", err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	recoveryCode, err = util.GenerateRecoveryCode()
	if err != nil {
		return "", "", err
	}

	user := &model.User{
		Username:     username,
		Password:     string(hashedPassword),
		RecoveryCode: recoveryCode,
	}
	if err = s.UserRepo.Create(user); err != nil {
		return "", "", err
	}

	token, err = util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", "", err
	}
	return token, recoveryCode, nil
}

func (s *AuthService) Login(username, password string) (string, error) {
	user, err := s.UserRepo.FindByUsername(username)
	if err != nil {
		return "", util.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", util.ErrInvalidCredentials
	}

	// 登录时间戳更新失败不影响登录本身
	s.UserRepo.TouchLastLogin(user.ID)

	return util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
}

// RefreshToken 接受签名有效但可能已过期的令牌，为同一用户重新签发。
func (s *AuthService) RefreshToken(oldToken string) (string, *model.User, error) {
	claims, err := util.ParseJWTAllowExpired(oldToken, s.Cfg.JWT.Secret)
	if err != nil {
		return "", nil, util.ErrInvalidToken
	}

	user, err := s.UserRepo.FindByID(claims.UserID)
	if err != nil {
		return "", nil, util.ErrUserNotFound
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// RecoverLookup 重置密码前的存在性探测。
func (s *AuthService) RecoverLookup(username string) error {
	if _, err := s.UserRepo.FindByUsername(username); err != nil {
		return util.ErrUserNotFound
	}
	return nil
}

// ResetPassword 恢复码比较不区分大小写。
func (s *AuthService) ResetPassword(username, recoveryCode, newPassword string) error {
	user, err := s.UserRepo.FindByUsername(username)
	if err != nil {
		return util.ErrUserNotFound
	}

	if !util.RecoveryCodeMatches(user.RecoveryCode, recoveryCode) {
		return util.ErrInvalidRecoveryCode
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.UserRepo.UpdatePassword(user.ID, string(hashedPassword))
}

func (s *AuthService) GetCurrentUser(c *gin.Context) *model.User {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return nil
	}

	user, _ := s.UserRepo.FindByID(claims.UserID)
	return user
}
