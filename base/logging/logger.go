package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/reversync/reversync/base/utils"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logsTimestampLayout = "2006-01-02 15:04:05.000"

// Config describes optional rotated file output for the global logger.
type Config struct {
	FilePath   string
	MaxSizeMb  int
	MaxBackups int
	Compress   bool
}

// InitGlobalLogger configures level and output of the process-wide logger.
// With an empty file path logs go to stderr only.
func InitGlobalLogger(levelStr string, config *Config) error {
	SetTextFormatter()
	level, err := log.ParseLevel(utils.DefaultString(levelStr, "info"))
	if err != nil {
		return fmt.Errorf("unknown log level: %s", levelStr)
	}
	log.SetLevel(level)
	if config != nil && config.FilePath != "" {
		rotated := &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSizeMb,
			MaxBackups: config.MaxBackups,
			Compress:   config.Compress,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}
	return nil
}

func SetJsonFormatter() {
	log.SetFormatter(&log.JSONFormatter{})
}

func SetTextFormatter() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: logsTimestampLayout,
	})
}

func SystemErrorf(format string, v ...any) {
	SystemError(fmt.Sprintf(format, v...))
}

func SystemError(v ...any) {
	msg := []any{"System error:"}
	msg = append(msg, v...)
	Error(msg...)
}

func Errorf(format string, v ...any) {
	log.Errorf(format, v...)
}

func Error(v ...any) {
	log.Errorln(v...)
}

func Infof(format string, v ...any) {
	log.Infof(format, v...)
}

func Info(v ...any) {
	log.Infoln(v...)
}

func Debugf(format string, v ...any) {
	log.Debugf(format, v...)
}

func Debug(v ...any) {
	log.Debug(v...)
}

func Warnf(format string, v ...any) {
	log.Warnf(format, v...)
}

func Warn(v ...any) {
	log.Warnln(v...)
}

func Fatal(v ...any) {
	log.Fatal(v...)
}

func Fatalf(format string, v ...any) {
	log.Fatalf(format, v...)
}
