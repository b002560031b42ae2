package models

import "errors"

var (
	ErrDecode          = errors.New("invalid inline image data")
	ErrUploadTransport = errors.New("object store write failed")
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("no authenticated owner")
	ErrNoOriginalImage = errors.New("project has no original image")
	ErrInvalidMode     = errors.New("invalid project mode")
	ErrInvalidRole     = errors.New("invalid chat role")
	ErrNoProject       = errors.New("no current project")
	ErrForbidden       = errors.New("project belongs to another user")
	ErrInvalidImageID  = errors.New("invalid image id")
	ErrDuplicateImage  = errors.New("duplicate image id")
	ErrForeignImageURL = errors.New("image url is outside project storage")
	ErrInvalidPath     = errors.New("invalid object path segment")
)
