package handler

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// AccessLogger is gin's request logger with the token query parameter
// redacted, so websocket credentials never reach the access log.
func AccessLogger(out io.Writer) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: accessLogLine,
		Output:    out,
	})
}

func accessLogLine(p gin.LogFormatterParams) string {
	return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
		p.TimeStamp.Format("2006/01/02 - 15:04:05"),
		p.StatusCode,
		p.Latency,
		p.ClientIP,
		p.Method,
		redactQuery(p.Path),
		p.ErrorMessage,
	)
}

func redactQuery(path string) string {
	base, raw, ok := strings.Cut(path, "?")
	if !ok {
		return path
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return base
	}
	if _, found := values["token"]; !found {
		return path
	}
	values.Set("token", "REDACTED")
	return base + "?" + values.Encode()
}
