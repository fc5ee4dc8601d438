// Copyright © 2017 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package common

import (
	"log"
	"os"
)

type LogLevel int

const (
	LogNone LogLevel = iota
	LogError
	LogWarning
	LogInfo
	LogDebug
)

// ILogger is the minimal logging surface the manager and its workers depend on.
// Kept deliberately small so any embedding application can supply its own sink.
type ILogger interface {
	ShouldLog(level LogLevel) bool
	Log(level LogLevel, msg string)
	Panic(err error)
}

type ILoggerCloser interface {
	ILogger
	CloseLog()
}

// NewAppLogger returns the default logger: stdlib log.Logger writing to stderr,
// filtered by minimumLevel.
func NewAppLogger(minimumLevel LogLevel) ILoggerCloser {
	return &appLogger{
		minimumLevel: minimumLevel,
		inner:        log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
	}
}

type appLogger struct {
	minimumLevel LogLevel
	inner        *log.Logger
}

func (a *appLogger) ShouldLog(level LogLevel) bool { return level <= a.minimumLevel }

func (a *appLogger) Log(level LogLevel, msg string) {
	if !a.ShouldLog(level) {
		return
	}
	a.inner.Printf("%s: %s", level, msg)
}

func (a *appLogger) Panic(err error) {
	a.inner.Printf("%s: %v", LogError, err)
	panic(err)
}

func (a *appLogger) CloseLog() {}

func (l LogLevel) String() string {
	switch l {
	case LogError:
		return "ERROR"
	case LogWarning:
		return "WARN"
	case LogInfo:
		return "INFO"
	case LogDebug:
		return "DEBUG"
	default:
		return "NONE"
	}
}
