/*
Copyright 2020 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log builds a diagnostics logger: a zap.Logger wrapped as a
// logr.Logger via zapr, matching the ambient logging stack the rest of the
// corpus uses. The CLI commands do not call it.
package log

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a root logr.Logger. Verbose enables debug-level output;
// output always goes to stderr so stdout stays reserved for rendered YAML.
func New(verbose bool) (logr.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	cfg := zap.Config{
		Level:            level,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = ""

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return zapr.NewLogger(zl), nil
}
