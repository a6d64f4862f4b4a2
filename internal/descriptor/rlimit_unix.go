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

//go:build linux || freebsd || openbsd || darwin || netbsd || dragonfly
// +build linux freebsd openbsd darwin netbsd dragonfly

package descriptor

import "golang.org/x/sys/unix"

// fallbackTableCapacity is used whenever the real getrlimit call fails
// or reports an unusable value.
const fallbackTableCapacity = 256

// defaultTableCapacity asks the real host how many file descriptors one
// process may hold open (RLIMIT_NOFILE) and uses that as the starting
// bitset size for a simulated host's descriptor table, so a scenario
// run on a machine tuned for a large fan-out gets a table sized to
// match without every host paying for repeated bitset growth.
func defaultTableCapacity() uint {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return fallbackTableCapacity
	}
	if rlim.Cur == 0 || rlim.Cur > 1<<20 {
		return fallbackTableCapacity
	}
	return uint(rlim.Cur)
}
