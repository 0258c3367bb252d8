package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/privacy"
	"docexplorer/internal/transport/http/response"
)

// Privacy screens POST and PUT JSON bodies before handlers bind them.
// Blocked patterns abort with 400; emails and phone numbers are rewritten
// in place. Bodies that do not parse as JSON pass through untouched.
func Privacy(filter *privacy.Filter) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if (method != http.MethodPost && method != http.MethodPut) || c.Request.Body == nil {
			c.Next()
			return
		}
		if !strings.HasPrefix(c.ContentType(), "application/json") {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		_ = c.Request.Body.Close()
		if err != nil {
			response.Abort(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}

		processed, err := filter.Process(body)
		switch {
		case errors.Is(err, privacy.ErrSensitiveData):
			response.Abort(c, http.StatusBadRequest, response.CodeSensitiveData,
				err.Error()+". Please remove before submitting.")
			return
		case err != nil:
			processed = body
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(processed))
		c.Request.ContentLength = int64(len(processed))
		c.Next()
	}
}
