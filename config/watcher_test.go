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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pollIntervalOverride shortens the watcher's poll interval for the
// duration of a test and returns a func that restores it.
func pollIntervalOverride(d time.Duration) func() {
	orig := pollInterval
	pollInterval = d
	return func() { pollInterval = orig }
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeTOML(t, validTOML)

	var mu sync.Mutex
	var reloads []*Config

	w := &Watcher{
		Path:   path,
		Logger: zap.NewNop(),
		OnReload: func(cfg *Config) {
			mu.Lock()
			reloads = append(reloads, cfg)
			mu.Unlock()
		},
	}

	origPoll := pollIntervalOverride(10 * time.Millisecond)
	defer origPoll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx)

	// Give the watcher time to record its initial mtime baseline.
	time.Sleep(30 * time.Millisecond)

	updated := validTOML + "\n# touch\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	// Ensure the mtime actually advances on filesystems with coarse
	// resolution.
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloads) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchKeepsPriorConfigOnInvalidReload(t *testing.T) {
	path := writeTOML(t, validTOML)

	var mu sync.Mutex
	calls := 0

	w := &Watcher{
		Path:   path,
		Logger: zap.NewNop(),
		OnReload: func(cfg *Config) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	}

	origPoll := pollIntervalOverride(10 * time.Millisecond)
	defer origPoll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx)

	time.Sleep(30 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("not valid toml [["), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls, "OnReload must not fire for an invalid config")
}
