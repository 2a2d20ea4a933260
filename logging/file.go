package logging

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogFileMaxSizeMB  = 64
	defaultLogFileMaxBackups = 3
)

// NewFileAppender returns an appender writing console formatted lines to path. The file is rotated
// once it grows past maxSizeMB and the rotated files are gzipped. The returned closer releases
// the file and must be called at shutdown.
func NewFileAppender(path string, maxSizeMB int) (Appender, io.Closer) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultLogFileMaxSizeMB
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: defaultLogFileMaxBackups,
		Compress:   true,
	}
	return NewWriterAppender(rotator), rotator
}
