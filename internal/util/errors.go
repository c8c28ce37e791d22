package util

import "errors"

var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrUsernameTaken       = errors.New("该用户名已被注册")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
	ErrSyncConflict        = errors.New("sync conflict: backend progress is newer")
)
