package chat

import "time"

// Clock 时间来源，测试中可替换
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer 可取消的一次性定时器
type Timer interface {
	Stop() bool
}

type realClock struct{}

// SystemClock 基于 time 包的时钟
func SystemClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
