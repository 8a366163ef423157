package main

import (
	"log"
	"strings"

	"mindcare/pkg/logging"
)

// serverErrorWriter 将 http.Server 内部错误转入结构化日志
// 客户端主动断开产生的噪音降为 debug
type serverErrorWriter struct {
	logger *logging.Logger
}

func (w *serverErrorWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer") {
		w.logger.Debug(msg)
		return len(p), nil
	}
	w.logger.Warn(msg)
	return len(p), nil
}

// newServerErrorLog 用于 http.Server.ErrorLog
func newServerErrorLog(logger *logging.Logger) *log.Logger {
	return log.New(&serverErrorWriter{logger: logger.Component("http")}, "", 0)
}
