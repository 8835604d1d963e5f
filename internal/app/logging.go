package app

import (
	"io"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"

	"splitpay/internal/config"
)

// ConfigureLogging sends the standard logger and gin's access log to stdout
// and, when a log file is configured, to a rotated file as well. The returned
// closer flushes the file; it is a no-op without one.
func ConfigureLogging(cfg config.LogConfig) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if cfg.File == "" {
		return nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: 5,
		Compress:   true,
	}
	out := io.MultiWriter(os.Stdout, file)
	log.SetOutput(out)
	gin.DefaultWriter = out
	gin.DefaultErrorWriter = out
	return file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
