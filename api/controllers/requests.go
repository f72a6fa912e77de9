package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/licensedesk/api/middleware"
	"github.com/angelmondragon/licensedesk/api/responses"
	"github.com/angelmondragon/licensedesk/api/validators"
	"github.com/angelmondragon/licensedesk/internal/requests"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
	"github.com/angelmondragon/licensedesk/pkg/logger"
)

const (
	maxServerNameLen = 255
	maxCommentLen    = 4000

	// formOverheadBytes covers the text fields and multipart framing that
	// travel next to an upload.
	formOverheadBytes = 1 << 20
)

// RequestsCreate accepts a support submission with its screenshot.
func RequestsCreate(svc requests.Service, maxUpload int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		if err := validators.ParseForm(w, r, maxUpload+formOverheadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		serverName := validators.SanitizeString(r.FormValue("server_name"), maxServerNameLen)
		if serverName == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{
				"server_name": "is required",
			}))
			return
		}

		evidence, err := validators.FormFile(r, "screenshot", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer evidence.Close()

		snap, err := svc.Create(r.Context(), actorFromRequest(r), requests.CreateInput{
			ServerName:     serverName,
			SupportComment: validators.SanitizeString(r.FormValue("support_comment"), maxCommentLen),
			Evidence:       toUpload(evidence),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, snap)
	}
}

// RequestsList returns every request, newest first.
func RequestsList(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		list, err := svc.List(r.Context(), actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if list == nil {
			list = []requests.Snapshot{}
		}
		responses.WriteSuccess(w, list)
	}
}

func RequestsGrant(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		id, err := requestIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ParseForm(w, r, formOverheadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		comment := validators.SanitizeString(r.FormValue("license_comment"), maxCommentLen)
		result, err := svc.Grant(r.Context(), actorFromRequest(r), id, comment)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func RequestsReject(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		id, err := requestIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reject(r.Context(), actorFromRequest(r), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func RequestsAccountsCheck(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		id, err := requestIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ParseForm(w, r, formOverheadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		approved, err := validators.FormBool(r, "approved")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AccountsCheck(r.Context(), actorFromRequest(r), id, approved)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RequestsFinalize marks a request as sent to the client, optionally with
// the artifact that was delivered.
func RequestsFinalize(svc requests.Service, maxUpload int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		id, err := requestIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ParseForm(w, r, maxUpload+formOverheadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		artifact, err := validators.FormFile(r, "client_file", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer artifact.Close()

		result, err := svc.Finalize(r.Context(), actorFromRequest(r), id, toUpload(artifact))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func actorFromRequest(r *http.Request) requests.Actor {
	ident := middleware.IdentityFromContext(r.Context())
	return requests.Actor{
		UserID:   ident.UserID,
		Username: ident.Username,
		Role:     ident.Role,
	}
}

func requestIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "requestId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request id")
	}
	return id, nil
}

func toUpload(f *validators.UploadedFile) *requests.Upload {
	if f == nil {
		return nil
	}
	return &requests.Upload{
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Ext:         f.Ext,
		Size:        f.Size,
		Body:        f.Body,
	}
}
