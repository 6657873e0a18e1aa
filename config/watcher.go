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

package config

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

// pollInterval is how often the watcher checks the config file's mtime.
// It is a var, not a const, so tests can shorten it instead of waiting
// out the production interval.
var pollInterval = 2 * time.Second

// Watcher polls a config file for changes and invokes OnReload with the
// freshly loaded and validated Config whenever its mtime advances.
//
// Unlike the file watcher this is adapted from, which broadcast a change
// signal nobody subscribed to, Watch actually drives a reload (see
// SPEC_FULL.md §4.7 / §9).
type Watcher struct {
	Path     string
	Logger   *zap.Logger
	OnReload func(*Config)
}

// Watch blocks until ctx is done, reloading Path whenever its modification
// time changes.
func (w *Watcher) Watch(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastMod, err := mtime(w.Path)
	if err != nil {
		w.Logger.Warn("config watcher: initial stat failed", zap.String("path", w.Path), zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mod, err := mtime(w.Path)
			if err != nil {
				w.Logger.Warn("config watcher: stat failed", zap.String("path", w.Path), zap.Error(err))
				continue
			}
			if mod.Equal(lastMod) {
				continue
			}
			lastMod = mod

			cfg, err := LoadFile(w.Path)
			if err != nil {
				w.Logger.Error("config watcher: reload rejected, keeping previous rule set",
					zap.String("path", w.Path), zap.Error(err))
				continue
			}
			w.Logger.Info("config watcher: reloaded", zap.String("path", w.Path))
			w.OnReload(cfg)
		}
	}
}

func mtime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
