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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/viamin/aidp-sub001/internal/commands/run"
	"github.com/viamin/aidp-sub001/internal/commands/validate"
	"github.com/viamin/aidp-sub001/internal/commands/version"
)

// Build metadata, injected via ldflags at build time.
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

func main() {
	version.SetBuildInfo(buildVersion, buildCommit, buildDate)

	root := &cobra.Command{
		Use:           "harness",
		Short:         "harness drives a multi-step AI-agent workflow across providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(run.NewCommand())
	root.AddCommand(validate.NewCommand())
	root.AddCommand(version.NewCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "harness:", err)
		os.Exit(1)
	}
}
