package validators

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// UploadedFile is a multipart file part with its sniffed content type.
type UploadedFile struct {
	Filename    string
	ContentType string
	Ext         string
	Size        int64
	Body        multipart.File
}

func (f *UploadedFile) Close() error {
	if f == nil || f.Body == nil {
		return nil
	}
	return f.Body.Close()
}

// FormFile returns the named file part. The content type comes from the
// bytes, not the client's header. A missing optional part yields (nil, nil).
// ParseForm must run first.
func FormFile(r *http.Request, field string, required bool) (*UploadedFile, error) {
	if r.MultipartForm == nil {
		if required {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "is required"})
		}
		return nil, nil
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			if required {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "is required"})
			}
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid file upload")
	}
	if header.Size == 0 {
		_ = file.Close()
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "must not be empty"})
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		_ = file.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read file upload")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rewind file upload")
	}

	return &UploadedFile{
		Filename:    filepath.Base(header.Filename),
		ContentType: mtype.String(),
		Ext:         mtype.Extension(),
		Size:        header.Size,
		Body:        file,
	}, nil
}
