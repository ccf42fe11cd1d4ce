package xexport

import (
	"sync"
	"sync/atomic"
)

// sharedCloser 多个导出器共享一个底层资源，最后一个释放者关闭它。
type sharedCloser struct {
	refs   atomic.Int64
	once   sync.Once
	err    error
	closed atomic.Bool
	close  func() error
}

func newSharedCloser(closeFn func() error) *sharedCloser {
	return &sharedCloser{close: closeFn}
}

// acquire 增加引用，返回只生效一次的释放函数。
func (s *sharedCloser) acquire() func() error {
	s.refs.Add(1)
	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			if s.refs.Add(-1) == 0 {
				err = s.Close()
			}
		})
		return err
	}
}

// Close 立即关闭底层资源，重复调用返回首次结果。
func (s *sharedCloser) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.close != nil {
			s.err = s.close()
		}
	})
	return s.err
}

func (s *sharedCloser) isClosed() bool {
	return s.closed.Load()
}
