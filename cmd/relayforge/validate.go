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

	"github.com/spf13/cobra"

	"github.com/relayforge/relayforge/config"
)

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate a configuration file without starting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(validateConfigPath)
		if err != nil {
			return err
		}
		fmt.Printf("config OK: %d forwarding rule(s)\n", len(cfg.ForwardingRules))
		return nil
	},
}

func init() {
	registerConfigFlag(validateCmd.Flags(), &validateConfigPath)
}
