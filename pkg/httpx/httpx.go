package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WriteObject 输出响应对象，错误时返回400
func WriteObject(c *gin.Context, obj interface{}, err error) {
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadRequest
	}
	c.JSON(status, obj)
}

// WriteObjectWithStatus 输出响应对象并指定状态码
func WriteObjectWithStatus(c *gin.Context, status int, obj interface{}) {
	c.JSON(status, obj)
}
