package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sakif/rankboard/internal/apperror"
)

const (
	MaxSubmissionBytes = 50 << 20
	MaxAvatarBytes     = 5 << 20

	// multipart framing around the file part
	multipartOverhead = 1 << 20

	submissionField = "submission"
	avatarField     = "avatar"

	pdfMIME = "application/pdf"
)

// avatarTypes maps the accepted image types to the extension they are
// stored under.
var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// contentTypeForExt is the reverse of avatarTypes, for serving.
func contentTypeForExt(name string) string {
	for mime, ext := range avatarTypes {
		if strings.HasSuffix(name, ext) {
			return mime
		}
	}
	return "application/octet-stream"
}

// errTooLarge is returned by openUpload when the body exceeds the cap. It
// is answered with 413 rather than through the domain mapping.
var errTooLarge = errors.New("upload too large")

// upload is one file part, positioned at its first byte, with its
// detected type.
type upload struct {
	file     multipart.File
	header   *multipart.FileHeader
	mimeType *mimetype.MIME
}

func (u *upload) Close() error { return u.file.Close() }

// openUpload caps the request body, extracts the file part named field and
// sniffs its type from the leading bytes.
func openUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errTooLarge
		}
		return nil, apperror.ValidationFailed(field, "expected a multipart/form-data body")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, apperror.ValidationFailed(field, fmt.Sprintf("file field %q is required", field))
	}
	if header.Size > maxBytes {
		file.Close()
		return nil, errTooLarge
	}

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("sniffing upload: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("rewinding upload: %w", err)
	}
	return &upload{file: file, header: header, mimeType: mt}, nil
}

// writeUploadError answers errTooLarge with 413 and everything else through
// writeError.
func writeUploadError(w http.ResponseWriter, r *http.Request, err error, maxBytes int64) {
	if errors.Is(err, errTooLarge) {
		writeStatus(w, http.StatusRequestEntityTooLarge, "payload_too_large",
			fmt.Sprintf("file must be at most %d MiB", maxBytes>>20))
		return
	}
	writeError(w, r, err)
}

// checkSubmissionFile enforces the PDF rules: no spaces in the client
// filename and PDF magic bytes.
func checkSubmissionFile(u *upload) error {
	if strings.Contains(u.header.Filename, " ") {
		return apperror.ValidationFailed(submissionField, "file name must not contain spaces")
	}
	if !u.mimeType.Is(pdfMIME) {
		return apperror.ValidationFailed(submissionField, "only PDF files are accepted")
	}
	return nil
}

// avatarExt returns the stored extension for an accepted image.
func avatarExt(u *upload) (string, error) {
	for mime, ext := range avatarTypes {
		if u.mimeType.Is(mime) {
			return ext, nil
		}
	}
	return "", apperror.ValidationFailed(avatarField, "avatar must be a JPEG, PNG or GIF image")
}
