package util

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const recoveryCodeLength = 12

// GenerateRecoveryCode 生成注册时下发的一次性恢复码（12位大写十六进制）。
func GenerateRecoveryCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := strings.ToUpper(hex.EncodeToString(buf))
	return code[:recoveryCodeLength], nil
}

// RecoveryCodeMatches 恢复码比较不区分大小写。
func RecoveryCodeMatches(stored, supplied string) bool {
	return stored != "" && strings.EqualFold(stored, supplied)
}
