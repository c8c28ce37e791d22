package model

import (
	"time"
)

// swagger:model User
type User struct {
	BaseModel
	Username     string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Password     string    `gorm:"size:100;not null" json:"-"`
	RecoveryCode string    `gorm:"size:32;not null" json:"-"` // 注册时下发一次，用于免邮箱重置密码
	LastLogin    time.Time `json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}
