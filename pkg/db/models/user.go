package models

import (
	"time"

	"github.com/angelmondragon/licensedesk/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a dashboard operator holding exactly one workflow role.
type User struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Username     string     `gorm:"column:username;type:text;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Role         enums.Role `gorm:"column:role;type:text;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// All lists every model managed by the service, in creation order.
func All() []any {
	return []any{&User{}, &LicenseRequest{}}
}
