package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
)

const (
	uploadField = "file"
	// multipart parts beyond this stay on disk
	multipartMemory = 8 << 20
)

// upload is a file read from a multipart request.
type upload struct {
	Name string
	Data []byte
}

// readUpload reads the "file" part. The body size is capped by the
// MaxBodySize middleware; exceeding it maps to ErrPayloadTooLarge.
func readUpload(r *http.Request) (*upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, uploadError(err)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, apierrors.ErrMissingFile
		}
		return nil, uploadError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, uploadError(err)
	}
	if len(data) == 0 {
		return nil, apierrors.ErrValidation(uploadField, "file is empty")
	}
	return &upload{Name: header.Filename, Data: data}, nil
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apierrors.WithCause(apierrors.ErrPayloadTooLarge, fmt.Errorf("limit %d bytes: %w", maxErr.Limit, err))
	}
	return apierrors.InvalidRequestWithError(err)
}
