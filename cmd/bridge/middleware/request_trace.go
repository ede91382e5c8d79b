package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"contextbase/internal/logger"
	"contextbase/trace"
)

const headerRequestID = "X-Request-Id"

// RequestTrace 는 inbound 요청마다 request id 를 보장하고 컨텍스트와 응답 헤더에 싣는다.
// 핸들러가 시작하는 작업은 같은 request id 로 원격 호출과 단계 이벤트를 남긴다.
func RequestTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		requestID := req.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = trace.GenerateID()
		}
		c.Request = req.WithContext(trace.WithOperation(req.Context(), requestID, "bridge"))
		c.Writer.Header().Set(headerRequestID, requestID)

		c.Next()

		fields := logger.Fields{
			"method":      req.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  requestID,
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		logger.InfoWithFields("completed request", fields)
	}
}
