package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LicenseRequest is one server's path from support submission to client delivery.
type LicenseRequest struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ServerName         string     `gorm:"column:server_name;not null"`
	ScreenshotURL      string     `gorm:"column:screenshot_url;not null"`
	SupportComment     *string    `gorm:"column:support_comment"`
	LicenseComment     *string    `gorm:"column:license_comment"`
	ClientUploadURL    *string    `gorm:"column:client_upload_url"`
	LicenseGiven       bool       `gorm:"column:license_given;not null;default:false"`
	LicenseGivenAt     *time.Time `gorm:"column:license_given_at"`
	LicenseVerified    bool       `gorm:"column:license_verified;not null;default:false"`
	LicenseVerifiedAt  *time.Time `gorm:"column:license_verified_at"`
	LicenseRejected    bool       `gorm:"column:license_rejected;not null;default:false"`
	LicenseRejectedAt  *time.Time `gorm:"column:license_rejected_at"`
	AccountsVerified   *bool      `gorm:"column:accounts_verified"`
	AccountsVerifiedAt *time.Time `gorm:"column:accounts_verified_at"`
	SentToClient       bool       `gorm:"column:sent_to_client;not null;default:false"`
	LicenseKey         *string    `gorm:"column:license_key"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;not null"`
}

func (LicenseRequest) TableName() string {
	return "license_requests"
}

// BeforeCreate assigns the id client side so sqlite and postgres behave alike.
func (r *LicenseRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
