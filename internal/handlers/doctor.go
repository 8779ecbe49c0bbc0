package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"smartclinic/api/internal/middleware"
)

var photoContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

const maxPhotoSize = 5 << 20 // 5 MiB

// UploadProfilePhoto stores the doctor's photo in the object store and saves
// the resulting URL on the doctor record.
func (h HandlerSet) UploadProfilePhoto(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	if file.Size > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
		return
	}

	contentType := file.Header.Get("Content-Type")
	ext, ok := photoContentTypes[strings.ToLower(contentType)]
	if !ok {
		ext = strings.ToLower(filepath.Ext(file.Filename))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" && ext != ".webp" {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported photo type"})
			return
		}
	}

	src, err := file.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer src.Close()

	objectName := fmt.Sprintf("doctors/%d/profile%s", identity.PrincipalID, ext)
	url, err := h.photos.PutProfilePhoto(c.Request.Context(), objectName, src, file.Size, contentType)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.auth.SetDoctorPhotoURL(c.Request.Context(), identity.PrincipalID, url); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"photoUrl": url})
}
