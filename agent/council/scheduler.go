package council

import "time"

// Timer 可取消的延迟任务
type Timer interface {
	Stop() bool
}

// Scheduler 延迟执行，测试中替换为假时钟
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler 基于 time.AfterFunc
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
