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

package iface

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/shadowsim/shadow/internal/simtime"
)

// BatchTime is a 5 ms batching period. The token buckets below do not
// refill on it: they accrue credit continuously (see NewInterface).
const BatchTime = 5 * time.Millisecond

// Interface is one host network interface: an address, up/down
// bandwidth, a qdisc, and independent egress/ingress token buckets, per
// spec.md §3 "Host" and §4.2.
type Interface struct {
	Address uint32

	UpKiBps   int
	DownKiBps int

	QDisc *QDisc

	egress  *rate.Limiter
	ingress *rate.Limiter
}

// NewInterface builds an Interface with egress/ingress token buckets
// sized from the configured up/down bandwidth (KiB/s), refilled
// continuously by golang.org/x/time/rate rather than a discrete
// batch_time timer — the limiter's token accrual is equivalent in the
// limit and avoids a dedicated scheduled refill task per interface.
func NewInterface(address uint32, upKiBps, downKiBps int, mode QDiscMode) *Interface {
	return &Interface{
		Address:   address,
		UpKiBps:   upKiBps,
		DownKiBps: downKiBps,
		QDisc:     NewQDisc(mode),
		egress:    rate.NewLimiter(rate.Limit(upKiBps*1024), upKiBps*1024),
		ingress:   rate.NewLimiter(rate.Limit(downKiBps*1024), downKiBps*1024),
	}
}

// asWallClock maps simulation time onto the time.Time axis rate.Limiter
// expects, without consulting the real wall clock. rate.Limiter only ever
// compares the instants it is given, so feeding it simulated nanoseconds
// keeps token accrual a pure function of simulated time elapsed between
// calls, per spec.md §4.1's determinism requirement.
func asWallClock(now simtime.Time) time.Time {
	return time.Unix(0, int64(now))
}

// TryEgress reports whether the egress token bucket currently holds at
// least n bytes of credit, consuming them if so. Used by the qdisc
// drain loop: "if tokens suffice, the interface hands the packet to
// worker_send_packet; otherwise the socket is marked pending." now is
// the caller's current simulation time, not the real clock.
func (i *Interface) TryEgress(now simtime.Time, n int) bool {
	return i.egress.AllowN(asWallClock(now), n)
}

// TryIngress is TryEgress's receive-side counterpart, consulted when a
// packet arrives before it is handed to the router.
func (i *Interface) TryIngress(now simtime.Time, n int) bool {
	return i.ingress.AllowN(asWallClock(now), n)
}

// EgressTokens reports the egress bucket's currently available token
// count (bytes) as of now, for tests and metrics.
func (i *Interface) EgressTokens(now simtime.Time) float64 {
	return i.egress.TokensAt(asWallClock(now))
}
