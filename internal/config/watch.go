/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchAndReload wires viper's fsnotify-backed file watcher to m.Reload,
// so editing the bound config file re-validates every registered
// component without a restart. onErr (optional) receives any error
// Reload returns; it is the caller's job to log or escalate it, since
// this package stays out of spec.md's logging-sink concerns.
func WatchAndReload(v *viper.Viper, m *Manager, onErr func(error)) {
	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := m.Reload(); err != nil && onErr != nil {
			onErr(err)
		}
	})
	v.WatchConfig()
}
