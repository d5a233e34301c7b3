// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package version implements the `harness version` command.
package version

import (
	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// SetBuildInfo records the ldflags-injected build metadata main reads.
func SetBuildInfo(v, commit, date string) {
	buildVersion, buildCommit, buildDate = v, commit, date
}

// BuildVersion returns the version recorded by SetBuildInfo, "dev" if
// never called.
func BuildVersion() string {
	return buildVersion
}

// NewCommand creates the version command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("harness version %s\n", buildVersion)
			cmd.Printf("  commit:     %s\n", buildCommit)
			cmd.Printf("  build date: %s\n", buildDate)
			return nil
		},
	}
}
