package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/storage"
)

// MaxPhotoBytes caps profile photo uploads.
const MaxPhotoBytes = 5 << 20

var photoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// UploadProfilePhoto handles POST /v1/profile/me/photo
// It stores the file and points the profile at its public URL.
func (h *Handlers) UploadProfilePhoto(c *gin.Context) {
	// 1. Get the file from the request
	file, err := c.FormFile("file")
	if err != nil {
		h.respondError(c, apperr.Validation("No file uploaded"))
		return
	}
	if file.Size > MaxPhotoBytes {
		h.respondError(c, apperr.Validation("Photos are limited to %d MB", MaxPhotoBytes>>20))
		return
	}

	// 2. Check the type from the file's own bytes, not the client's header
	src, err := file.Open()
	if err != nil {
		h.respondError(c, apperr.Validation("Could not read the uploaded file"))
		return
	}
	defer src.Close()

	contentType, err := sniffContentType(src)
	if err != nil {
		h.respondError(c, apperr.Validation("Could not read the uploaded file"))
		return
	}
	if !photoTypes[contentType] {
		h.respondError(c, apperr.Validation("Unsupported image type %s", contentType))
		return
	}
	if _, err := src.Seek(0, 0); err != nil {
		h.respondError(c, apperr.Storage(err, "rewind upload"))
		return
	}

	// 3. Store it under a fresh key (uuid + extension)
	user := currentUser(c)
	url, err := h.Blobs.Put(c.Request.Context(), storage.ProfileKey(user.ID, file.Filename), contentType, src)
	if err != nil {
		h.respondError(c, apperr.Storage(err, "store photo"))
		return
	}

	// 4. Point the profile at it
	user.PhotoURL = &url
	user.UpdatedAt = time.Now()
	if err := h.Store.UpdateProfile(c.Request.Context(), user); err != nil {
		h.respondError(c, apperr.Storage(err, "update profile photo"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":  url,
		"user": user,
	})
}

// sniffContentType reads up to the 512 bytes http.DetectContentType looks at.
func sniffContentType(r io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
