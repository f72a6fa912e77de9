package validators

import (
	"errors"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
)

// ParseForm reads urlencoded and multipart bodies alike, bounded by maxBytes.
func ParseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	var err error
	if strings.HasPrefix(ct, "multipart/form-data") {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body too large").WithDetails(map[string]any{
			"max_bytes": tooLarge.Limit,
		})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form body")
}

// FormBool parses a required boolean form field. It accepts the spellings
// browsers and form libraries commonly send.
func FormBool(r *http.Request, field string) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(r.FormValue(field)))
	switch raw {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	case "":
		return false, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "is required"})
	default:
		return false, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "must be true or false"})
	}
}
