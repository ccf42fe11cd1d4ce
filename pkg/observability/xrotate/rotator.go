package xrotate

import "io"

var _ io.WriteCloser = (Rotator)(nil)

// Rotator 可轮转的文件写入器。
type Rotator interface {
	Write(p []byte) (n int, err error)

	// Close 关闭当前文件，之后的 Write/Rotate 返回 ErrClosed。
	Close() error

	// Rotate 立即切换到新文件。
	Rotate() error
}
