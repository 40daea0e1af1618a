// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package options

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sigstore/content-credentials/pkg/logging"
)

// RootOptions are the flags shared by every subcommand.
type RootOptions struct {
	// OutputFile receives reports instead of stdout.
	OutputFile string
	LogLevel   string
	LogFormat  string
	Timeout    time.Duration
}

// DefaultTimeout bounds a whole command, including revocation checks.
const DefaultTimeout = 3 * time.Minute

var _ Interface = (*RootOptions)(nil)

func (o *RootOptions) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.OutputFile, "output-file", "",
		"write reports to a file instead of stdout")
	_ = cmd.MarkPersistentFlagFilename("output-file", "json", "txt")

	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", "warn",
		"minimum log level (debug, info, warn, error, silent)")
	cmd.PersistentFlags().StringVar(&o.LogFormat, "log-format", "text",
		"log output format (text, json)")
	cmd.PersistentFlags().DurationVarP(&o.Timeout, "timeout", "t", DefaultTimeout,
		"timeout for commands")
}

func (o *RootOptions) GetLogLevel() logging.LogLevel {
	return logging.ParseLogLevel(o.LogLevel)
}

func (o *RootOptions) GetLogFormat() logging.LogFormat {
	return logging.ParseLogFormat(o.LogFormat)
}

// NewLogger creates a stderr logger from the root flags.
func (o *RootOptions) NewLogger() logging.Logger {
	return logging.NewLoggerWithOptions(logging.LoggerOptions{
		Level:     o.GetLogLevel(),
		Format:    o.GetLogFormat(),
		ShowLevel: true,
	})
}
