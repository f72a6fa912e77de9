package requests

import (
	"io"
	"time"

	"github.com/angelmondragon/licensedesk/pkg/db/models"
	"github.com/angelmondragon/licensedesk/pkg/enums"
	"github.com/google/uuid"
)

// Actor is the authenticated caller as asserted by the identity provider.
type Actor struct {
	UserID   uuid.UUID
	Username string
	Role     enums.Role
}

// Upload is a blob received from a client, already sniffed by the transport.
type Upload struct {
	Filename    string
	ContentType string
	Ext         string
	Size        int64
	Body        io.Reader
}

// CreateInput holds the support submission.
type CreateInput struct {
	ServerName     string
	SupportComment string
	Evidence       *Upload
}

// Snapshot is the full externally visible state of a request.
type Snapshot struct {
	ID                 uuid.UUID           `json:"id"`
	ServerName         string              `json:"server_name"`
	ScreenshotURL      string              `json:"screenshot_url"`
	SupportComment     *string             `json:"support_comment"`
	LicenseComment     *string             `json:"license_comment"`
	ClientUploadURL    *string             `json:"client_upload_url"`
	LicenseGiven       bool                `json:"license_given"`
	LicenseGivenAt     *time.Time          `json:"license_given_at"`
	LicenseVerified    bool                `json:"license_verified"`
	LicenseVerifiedAt  *time.Time          `json:"license_verified_at"`
	LicenseRejected    bool                `json:"license_rejected"`
	LicenseRejectedAt  *time.Time          `json:"license_rejected_at"`
	AccountsVerified   *bool               `json:"accounts_verified"`
	AccountsVerifiedAt *time.Time          `json:"accounts_verified_at"`
	SentToClient       bool                `json:"sent_to_client"`
	LicenseKey         *string             `json:"license_key"`
	LicenseState       enums.LicenseState  `json:"license_state"`
	AccountsState      enums.AccountsState `json:"accounts_state"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Result is returned by the decision operations.
type Result struct {
	Status   enums.ActionStatus `json:"status"`
	Approved *bool              `json:"approved,omitempty"`
	Request  *Snapshot          `json:"request,omitempty"`
}

func FromModel(m *models.LicenseRequest) *Snapshot {
	if m == nil {
		return nil
	}
	return &Snapshot{
		ID:                 m.ID,
		ServerName:         m.ServerName,
		ScreenshotURL:      m.ScreenshotURL,
		SupportComment:     m.SupportComment,
		LicenseComment:     m.LicenseComment,
		ClientUploadURL:    m.ClientUploadURL,
		LicenseGiven:       m.LicenseGiven,
		LicenseGivenAt:     m.LicenseGivenAt,
		LicenseVerified:    m.LicenseVerified,
		LicenseVerifiedAt:  m.LicenseVerifiedAt,
		LicenseRejected:    m.LicenseRejected,
		LicenseRejectedAt:  m.LicenseRejectedAt,
		AccountsVerified:   m.AccountsVerified,
		AccountsVerifiedAt: m.AccountsVerifiedAt,
		SentToClient:       m.SentToClient,
		LicenseKey:         m.LicenseKey,
		LicenseState:       enums.DeriveLicenseState(m.LicenseGiven, m.LicenseRejected),
		AccountsState:      enums.DeriveAccountsState(m.AccountsVerified),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func fromModels(rows []models.LicenseRequest) []Snapshot {
	out := make([]Snapshot, len(rows))
	for i := range rows {
		out[i] = *FromModel(&rows[i])
	}
	return out
}
