package logger

import (
	"strings"
	"time"
)

// LogConnection 记录一次连接的请求行与响应结果
func LogConnection(id, remoteAddr, requestLine, status string, bodyLen int, elapsed time.Duration) {
	requestLine = strings.TrimRight(requestLine, "\r\n\x00")
	if requestLine == "" {
		requestLine = "-"
	}
	LogPrintf("[%s] [%s] %q %s %d %s", id, remoteAddr, requestLine, status, bodyLen, elapsed.Round(time.Microsecond))
}
