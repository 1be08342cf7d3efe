package handlers

import (
	"errors"
	"mime/multipart"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"social-service/internal/apperror"
	"social-service/internal/services"
)

// readMultipart parses the multipart body and writes the error response when
// it cannot be read. A body cut off by the upload limit gets 413.
func readMultipart(c *gin.Context) bool {
	_, err := c.MultipartForm()
	if err == nil {
		return true
	}
	var tooLarge *nethttp.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(nethttp.StatusRequestEntityTooLarge, gin.H{"error": "file is too large", "code": apperror.KindInvalidInput})
		return false
	}
	badRequest(c, "invalid multipart body")
	return false
}

// openUpload turns a multipart file header into a service upload. The content
// type is the one the client declared for the part.
func openUpload(file *multipart.FileHeader) (services.Upload, func(), error) {
	f, err := file.Open()
	if err != nil {
		return services.Upload{}, nil, err
	}
	return services.Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Body:        f,
	}, func() { f.Close() }, nil
}
