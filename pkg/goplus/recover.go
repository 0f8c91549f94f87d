package goplus

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

const maxPanicDepth = 32

// Recover must be deferred directly.
func Recover() {
	if r := recover(); r != nil {
		logPanic("", r)
	}
}

func RecoverNamed(task string) {
	if r := recover(); r != nil {
		logPanic(task, r)
	}
}

// Safe runs fn and converts a panic into an error.
func Safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic("", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func logPanic(task string, r any) {
	var sb strings.Builder
	for i := 3; i <= maxPanicDepth; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		sb.WriteString(fmt.Sprintf("%s:%d\n", file, line))
	}

	ev := logger.Error().Str("panic", fmt.Sprint(r)).Str("callers", sb.String())
	if task != "" {
		ev = ev.Str("task", task)
	}
	ev.Msg("goroutine panic recovered")
}
