/*
 *
 * Copyright 2015 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package grpclog is the injected logging sink for the core (spec §1:
// "Logging and tracing (injected as sinks only)"). Nothing in this
// module logs directly to stdout/stderr; everything goes through the
// LoggerV2 set here, defaulting to a stdlib-log-backed implementation.
package grpclog

import (
	"log"
	"os"
)

// LoggerV2 is the logging interface ambient code in this core calls
// through. Implementations must be safe for concurrent use.
type LoggerV2 interface {
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warning(args ...interface{})
	Warningf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
}

var logger LoggerV2 = newLoggerV2()

// SetLogger sets the logger used by the core. Like the teacher's
// grpclog package, this is not safe to call concurrently with logging
// and is intended for use during process initialization only.
func SetLogger(l LoggerV2) {
	logger = l
}

func Info(args ...interface{})                 { logger.Info(args...) }
func Infof(format string, args ...interface{}) { logger.Infof(format, args...) }
func Warning(args ...interface{})              { logger.Warning(args...) }
func Warningf(format string, args ...interface{}) {
	logger.Warningf(format, args...)
}
func Error(args ...interface{})                 { logger.Error(args...) }
func Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }

type loggerT struct {
	infoLog, warningLog, errorLog *log.Logger
}

func newLoggerV2() LoggerV2 {
	return &loggerT{
		infoLog:    log.New(os.Stderr, "INFO: ", log.LstdFlags),
		warningLog: log.New(os.Stderr, "WARNING: ", log.LstdFlags),
		errorLog:   log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}
}

func (g *loggerT) Info(args ...interface{})  { g.infoLog.Println(args...) }
func (g *loggerT) Infof(format string, args ...interface{}) {
	g.infoLog.Printf(format, args...)
}
func (g *loggerT) Warning(args ...interface{}) { g.warningLog.Println(args...) }
func (g *loggerT) Warningf(format string, args ...interface{}) {
	g.warningLog.Printf(format, args...)
}
func (g *loggerT) Error(args ...interface{}) { g.errorLog.Println(args...) }
func (g *loggerT) Errorf(format string, args ...interface{}) {
	g.errorLog.Printf(format, args...)
}
