// Copyright 2015 Matthew Holt and The Caddy Authors
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
	"github.com/spf13/pflag"
)

const defaultConfigPath = "relayforge.toml"

var rootCmd = &cobra.Command{
	Use:   "relayforge",
	Short: "relayforge is a reverse HTTP proxy with per-route content replacement",
	Long: `relayforge forwards requests to one of several upstreams per route,
round-robin, optionally rewriting headers and the request body with tokens
drawn from a file or a remote URL. Configuration lives in a TOML file and
can be hot-reloaded without restarting the process.`,
}

// registerConfigFlag wires the shared --config/-c flag onto fs, so "run"
// and "validate-config" don't each redeclare it.
func registerConfigFlag(fs *pflag.FlagSet, dest *string) {
	fs.StringVarP(dest, "config", "c", defaultConfigPath, "path to the TOML configuration file")
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
