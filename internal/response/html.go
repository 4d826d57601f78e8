package response

import (
	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

// HTML renders a view component as the response body.
func HTML(c *gin.Context, statusCode int, component templ.Component) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(statusCode)
	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		_ = c.Error(err)
	}
}
