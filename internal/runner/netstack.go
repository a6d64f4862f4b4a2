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

// netstack.go wires internal/descriptor, internal/socket, internal/tcp,
// internal/iface, internal/router and internal/packet into the
// simulator-side Handler implementations a Shim dispatches a guest
// plugin's socket/bind/connect/send/recv/close/epoll_* calls to. Before
// this, those packages were exercised only by their own package tests;
// registerSyscalls is the one place a create-host scenario's plugins
// actually drive them end to end.
package runner

import (
	"sync"

	"github.com/shadowsim/shadow/internal/descriptor"
	"github.com/shadowsim/shadow/internal/dns"
	"github.com/shadowsim/shadow/internal/event"
	"github.com/shadowsim/shadow/internal/host"
	"github.com/shadowsim/shadow/internal/iface"
	"github.com/shadowsim/shadow/internal/packet"
	"github.com/shadowsim/shadow/internal/router"
	"github.com/shadowsim/shadow/internal/scheduler"
	"github.com/shadowsim/shadow/internal/shadowerr"
	"github.com/shadowsim/shadow/internal/shim"
	"github.com/shadowsim/shadow/internal/simtime"
	"github.com/shadowsim/shadow/internal/socket"
	"github.com/shadowsim/shadow/internal/tcp"
	"github.com/shadowsim/shadow/internal/topology"
)

// hostNet is one host's networking state: its bind table, its open TCP
// connections keyed by the descriptor handle carrying them, and the
// monotonic counters event.New's srcSeq and packet.New's packetID need
// (both documented as "the caller's responsibility" by those packages).
type hostNet struct {
	host  *host.Host
	binds *socket.BindTable

	mu           sync.Mutex
	tcpConns     map[descriptor.Handle]*tcp.Connection
	nextSeq      uint64
	nextPacketID uint64
}

func newHostNet(h *host.Host) *hostNet {
	return &hostNet{
		host:     h,
		binds:    socket.NewBindTable(),
		tcpConns: make(map[descriptor.Handle]*tcp.Connection),
	}
}

func (hn *hostNet) seq() uint64 {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	hn.nextSeq++
	return hn.nextSeq
}

func (hn *hostNet) packetID() uint64 {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	hn.nextPacketID++
	return hn.nextPacketID
}

func (hn *hostNet) primaryInterface() *iface.Interface {
	if len(hn.host.Interfaces) == 0 {
		return nil
	}
	return hn.host.Interfaces[0]
}

func (hn *hostNet) primaryAddress() uint32 {
	ifc := hn.primaryInterface()
	if ifc == nil {
		return 0
	}
	return ifc.Address
}

func (hn *hostNet) setConn(h descriptor.Handle, c *tcp.Connection) {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	hn.tcpConns[h] = c
}

func (hn *hostNet) getConn(h descriptor.Handle) (*tcp.Connection, bool) {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	c, ok := hn.tcpConns[h]
	return c, ok
}

func (hn *hostNet) dropConn(h descriptor.Handle) {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	delete(hn.tcpConns, h)
}

// netStack is the syscall-handler layer Build registers on a Shim. It
// keeps its own ip->host index built directly from interface addresses
// at create-host time: internal/dns.Resolver's AddressID space exists
// for name resolution and only coincides with a Host's ID today because
// Build happens to register both in lockstep, so routing a delivery
// through the resolver's id would silently break the moment that
// coincidence stops holding. Going through the resolver's name instead
// of its id keeps the two id spaces honestly decoupled.
type netStack struct {
	mu       sync.Mutex
	topo     topology.Oracle
	resolver *dns.Resolver
	sched    *scheduler.Scheduler

	byName map[string]*host.Host
	byID   map[uint64]*hostNet
}

func newNetStack(topo topology.Oracle, resolver *dns.Resolver, sched *scheduler.Scheduler, hosts map[string]*host.Host) *netStack {
	return &netStack{
		topo:     topo,
		resolver: resolver,
		sched:    sched,
		byName:   hosts,
		byID:     make(map[uint64]*hostNet),
	}
}

// addHost registers h's networking state. Build calls this once per
// host immediately after create-host builds it.
func (ns *netStack) addHost(h *host.Host) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.byID[h.ID] = newHostNet(h)
}

func (ns *netStack) hostNetByID(id uint64) (*hostNet, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	hn, ok := ns.byID[id]
	if !ok {
		return nil, shadowerr.New(shadowerr.CodeInvariantUnknownHost, "syscall from unregistered host %d", id)
	}
	return hn, nil
}

// hostNetForIP resolves a destination interface address to the hostNet
// that owns it, by way of the name the dns.Resolver already maps the
// address to, never its AddressID.
func (ns *netStack) hostNetForIP(ip uint32) (*hostNet, uint64, error) {
	_, name, err := ns.resolver.LookupIPv4(ip)
	if err != nil {
		return nil, 0, shadowerr.New(shadowerr.CodeSyscallNoRoute, "no host at address %d", ip)
	}
	ns.mu.Lock()
	h, ok := ns.byName[name]
	ns.mu.Unlock()
	if !ok {
		return nil, 0, shadowerr.New(shadowerr.CodeSyscallNoRoute, "no host at address %d", ip)
	}
	hn, err := ns.hostNetByID(h.ID)
	if err != nil {
		return nil, 0, err
	}
	return hn, h.ID, nil
}

// scheduleAt pushes a Task that fires fn at base+delay, handing fn that
// same instant as its own "now" rather than leaving it to re-derive the
// scheduler's current time (Task.Execute takes no arguments).
func (ns *netStack) scheduleAt(base simtime.Time, delay simtime.Duration, srcSeq uint64, src, dst uint32, fn func(now simtime.Time)) {
	at := base.Add(delay)
	task := event.NewTask(func(_, _ interface{}) { fn(at) }, nil, nil, nil, nil)
	ns.sched.Push(event.New(at, src, dst, srcSeq, task))
}

// drainCallbacks turns hostID's pending guest timers into Events, the
// Scheduler.SetCallbackDrain hook Build wires up so a plugin's
// create_callback(fn, data, delay_ms) actually fires.
func (ns *netStack) drainCallbacks(sh *shim.Shim, hostID uint32, now simtime.Time) {
	hn, err := ns.hostNetByID(uint64(hostID))
	if err != nil {
		return
	}
	for _, pc := range sh.DrainCallbacksForHost(uint64(hostID)) {
		pc := pc
		ns.scheduleAt(now, simtime.Duration(pc.DelayMs*1_000_000), hn.seq(), hostID, hostID, func(at simtime.Time) {
			if inst, ok := sh.Instance(pc.InstanceKey); ok {
				inst.SetNow(at)
			}
			pc.Fn(pc.Data)
		})
	}
}

// registerSyscalls installs the default socket/bind/connect/send/recv/
// close/epoll_* handlers on sh, per spec.md §4.5's interposed-symbol
// table.
func (ns *netStack) registerSyscalls(sh *shim.Shim) {
	sh.RegisterSyscall("socket", ns.doSocket)
	sh.RegisterSyscall("bind", ns.doBind)
	sh.RegisterSyscall("connect", ns.doConnect)
	sh.RegisterSyscall("send", ns.doSend)
	sh.RegisterSyscall("recv", ns.doRecv)
	sh.RegisterSyscall("close", ns.doClose)
	sh.RegisterSyscall("epoll_create", ns.doEpollCreate)
	sh.RegisterSyscall("epoll_ctl_add", ns.doEpollCtlAdd)
	sh.RegisterSyscall("epoll_wait", ns.doEpollWait)
}

func handleArg(call shim.Call, i int) (descriptor.Handle, error) {
	if i >= len(call.Args) {
		return 0, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "missing descriptor argument %d", i)
	}
	h, ok := call.Args[i].(descriptor.Handle)
	if !ok {
		return 0, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "argument %d is not a descriptor handle", i)
	}
	return h, nil
}

func ipArg(call shim.Call, i int) (uint32, error) {
	if i >= len(call.Args) {
		return 0, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "missing address argument %d", i)
	}
	ip, ok := call.Args[i].(uint32)
	if !ok {
		return 0, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "argument %d is not an ipv4 address", i)
	}
	return ip, nil
}

func portArg(call shim.Call, i int) (uint16, error) {
	if i >= len(call.Args) {
		return 0, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "missing port argument %d", i)
	}
	p, ok := call.Args[i].(uint16)
	if !ok {
		return 0, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "argument %d is not a port", i)
	}
	return p, nil
}

func intArg(call shim.Call, i int) (int, error) {
	if i >= len(call.Args) {
		return 0, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "missing argument %d", i)
	}
	n, ok := call.Args[i].(int)
	if !ok {
		return 0, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "argument %d is not an int", i)
	}
	return n, nil
}

func bytesArg(call shim.Call, i int) ([]byte, bool) {
	if i >= len(call.Args) {
		return nil, false
	}
	b, ok := call.Args[i].([]byte)
	return b, ok
}

func packetProtocol(p socket.Protocol) packet.Protocol {
	if p == socket.ProtoTCP {
		return packet.ProtoTCP
	}
	return packet.ProtoUDP
}

func (ns *netStack) doSocket(inst *shim.Instance, call shim.Call) shim.Return {
	hn, err := ns.hostNetByID(inst.HostID)
	if err != nil {
		return shim.Return{Err: err}
	}
	proto, _ := call.Args[0].(string)

	var d *descriptor.Descriptor
	switch proto {
	case "udp":
		d = hn.host.Descriptors.Open(descriptor.KindUDP, 0, nil)
		socket.NewUDP(d, 0)
	case "tcp":
		d = hn.host.Descriptors.Open(descriptor.KindTCP, 0, nil)
		socket.NewTCP(d, 0)
	default:
		return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "socket: unknown protocol %q", proto)}
	}
	return shim.Return{Value: d.Handle()}
}

func (ns *netStack) doBind(inst *shim.Instance, call shim.Call) shim.Return {
	hn, err := ns.hostNetByID(inst.HostID)
	if err != nil {
		return shim.Return{Err: err}
	}
	h, err := handleArg(call, 0)
	if err != nil {
		return shim.Return{Err: err}
	}
	ip, err := ipArg(call, 1)
	if err != nil {
		return shim.Return{Err: err}
	}
	port, err := portArg(call, 2)
	if err != nil {
		return shim.Return{Err: err}
	}

	sk, err := ns.socketAt(hn, h)
	if err != nil {
		return shim.Return{Err: err}
	}

	addr, err := hn.binds.Bind(sk, ip, port)
	if err != nil {
		return shim.Return{Err: err}
	}
	return shim.Return{Value: addr.Port}
}

func (ns *netStack) socketAt(hn *hostNet, h descriptor.Handle) (*socket.Socket, error) {
	d, err := hn.host.Descriptors.Lookup(h)
	if err != nil {
		return nil, err
	}
	sk, ok := d.Ext().(*socket.Socket)
	if !ok {
		return nil, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "descriptor %d is not a socket", h)
	}
	return sk, nil
}

// doConnect records the peer address for UDP, or — for TCP — kicks off
// a real two-leg handshake: a SYN event scheduled at topology latency,
// a SYN-ACK scheduled back at the same latency. The handshake's closing
// ACK is not modeled; the connection moves SYN_SENT -> ESTABLISHED on
// the SYN-ACK alone, a documented scope simplification (DESIGN.md).
func (ns *netStack) doConnect(inst *shim.Instance, call shim.Call) shim.Return {
	hn, err := ns.hostNetByID(inst.HostID)
	if err != nil {
		return shim.Return{Err: err}
	}
	h, err := handleArg(call, 0)
	if err != nil {
		return shim.Return{Err: err}
	}
	ip, err := ipArg(call, 1)
	if err != nil {
		return shim.Return{Err: err}
	}
	port, err := portArg(call, 2)
	if err != nil {
		return shim.Return{Err: err}
	}

	sk, err := ns.socketAt(hn, h)
	if err != nil {
		return shim.Return{Err: err}
	}

	remote := socket.Addr{IP: ip, Port: port}
	sk.Connect(remote)

	if sk.Protocol() != socket.ProtoTCP {
		return shim.Return{}
	}

	if sk.Local().IsZero() {
		if _, err := hn.binds.Bind(sk, hn.primaryAddress(), 0); err != nil {
			return shim.Return{Err: err}
		}
	}

	_, dstHostID, err := ns.hostNetForIP(ip)
	if err != nil {
		return shim.Return{Err: err}
	}

	lat, err := ns.topo.Latency(inst.HostID, dstHostID)
	if err != nil {
		return shim.Return{Err: shadowerr.New(shadowerr.CodeInvariantNoRoute, "no route from host %d to host %d", inst.HostID, dstHostID)}
	}

	iss := uint32(hn.host.RNG.Int63())
	conn := tcp.NewConnection(sk, tcp.VariantReno, iss, 65535)
	conn.OpenActive()
	hn.setConn(h, conn)

	srcHostID := inst.HostID
	localAddr := sk.Local()
	ns.scheduleAt(call.Now, lat, hn.seq(), uint32(srcHostID), uint32(dstHostID), func(now simtime.Time) {
		ns.deliverSyn(dstHostID, srcHostID, localAddr, remote, h, iss, now)
	})

	return shim.Return{}
}

func (ns *netStack) deliverSyn(dstHostID, srcHostID uint64, localAddr, remote socket.Addr, srcHandle descriptor.Handle, clientISS uint32, now simtime.Time) {
	dstHN, err := ns.hostNetByID(dstHostID)
	if err != nil {
		return
	}
	listener, ok := dstHN.binds.Lookup(socket.ProtoTCP, remote.IP, remote.Port)
	if !ok {
		return // no listener bound: SYN dropped silently, no RST modeled
	}

	serverISS := uint32(dstHN.host.RNG.Int63())
	conn := tcp.NewConnection(listener, tcp.VariantReno, serverISS, 65535)
	conn.Listen()
	ackNum, err := conn.HandleSyn(clientISS)
	if err != nil {
		return
	}
	dstHN.setConn(listener.Descriptor().Handle(), conn)

	lat, err := ns.topo.Latency(dstHostID, srcHostID)
	if err != nil {
		return
	}
	ns.scheduleAt(now, lat, dstHN.seq(), uint32(dstHostID), uint32(srcHostID), func(simtime.Time) {
		ns.deliverSynAck(srcHostID, srcHandle, serverISS, ackNum)
	})
}

func (ns *netStack) deliverSynAck(srcHostID uint64, srcHandle descriptor.Handle, serverISS, ackNum uint32) {
	hn, err := ns.hostNetByID(srcHostID)
	if err != nil {
		return
	}
	conn, ok := hn.getConn(srcHandle)
	if !ok {
		return
	}
	_ = conn.HandleSynAck(serverISS, ackNum) // best-effort: mismatched SYN-ACKs are dropped, not surfaced
}

// doSend builds a Packet for the socket's connected peer, checks the
// origin interface's egress token bucket, rolls topology reliability
// against the host RNG, and — if the packet survives — schedules
// delivery at the destination host after topology latency.
func (ns *netStack) doSend(inst *shim.Instance, call shim.Call) shim.Return {
	hn, err := ns.hostNetByID(inst.HostID)
	if err != nil {
		return shim.Return{Err: err}
	}
	h, err := handleArg(call, 0)
	if err != nil {
		return shim.Return{Err: err}
	}
	data, ok := bytesArg(call, 1)
	if !ok {
		return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "send: argument 1 is not a byte slice")}
	}

	sk, err := ns.socketAt(hn, h)
	if err != nil {
		return shim.Return{Err: err}
	}

	remote := sk.Remote()
	if remote.IsZero() {
		return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallWouldBlock, "send on unconnected socket %d", h)}
	}

	dstHN, dstHostID, err := ns.hostNetForIP(remote.IP)
	if err != nil {
		return shim.Return{Err: err}
	}

	if sk.Protocol() == socket.ProtoTCP {
		conn, ok := hn.getConn(h)
		if !ok {
			return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallConnectionReset, "send on unconnected TCP socket %d", h)}
		}
		if _, err := conn.Send(data); err != nil {
			return shim.Return{Err: err}
		}
	}

	payload := packet.NewPayload(data)
	pk := packet.New(packetProtocol(sk.Protocol()), uint32(inst.HostID), hn.packetID(), payload)
	if sk.Protocol() == socket.ProtoUDP {
		pk.SetUDP(packet.UDPHeader{SrcPort: sk.Local().Port, DstPort: remote.Port, Length: uint16(payload.Len())})
	} else {
		pk.SetTCP(packet.TCPHeader{SrcPort: sk.Local().Port, DstPort: remote.Port, Flags: packet.FlagACK})
	}
	pk.Mark(packet.StatusSendBufferEnqueued)

	ifc := hn.primaryInterface()
	if ifc == nil || !ifc.TryEgress(call.Now, pk.Len()) {
		pk.Mark(packet.StatusInterfaceDropped)
		pk.Destroy()
		return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallWouldBlock, "egress rate limit exceeded on host %d", inst.HostID)}
	}
	pk.Mark(packet.StatusInterfaceSent)

	lat, err := ns.topo.Latency(inst.HostID, dstHostID)
	if err != nil {
		pk.Mark(packet.StatusWireDropped)
		pk.Destroy()
		return shim.Return{Err: shadowerr.New(shadowerr.CodeInvariantNoRoute, "no route from host %d to host %d", inst.HostID, dstHostID)}
	}
	reliability, err := ns.topo.Reliability(inst.HostID, dstHostID)
	if err != nil {
		reliability = 1
	}

	pk.FreezeOnWire()

	if hn.host.RNG.Float64() >= reliability {
		pk.Mark(packet.StatusWireDropped)
		ns.scheduleAt(call.Now, lat, hn.seq(), uint32(inst.HostID), uint32(dstHostID), func(simtime.Time) {
			pk.Destroy()
		})
		return shim.Return{Value: len(data)}
	}

	pk.Mark(packet.StatusWireSent)
	ns.scheduleAt(call.Now, lat, hn.seq(), uint32(inst.HostID), uint32(dstHostID), func(now simtime.Time) {
		ns.deliverPacket(dstHN, pk, now)
	})

	return shim.Return{Value: len(data)}
}

// deliverPacket runs the destination side of one wire delivery: the
// ingress token bucket, the host's router.Manager (CoDel by default,
// per host.New), and finally a socket bind-table lookup to hand the
// payload to the waiting recv queue.
func (ns *netStack) deliverPacket(dstHN *hostNet, pk *packet.Packet, now simtime.Time) {
	ifc := dstHN.primaryInterface()
	if ifc == nil || !ifc.TryIngress(now, pk.Len()) {
		pk.Mark(packet.StatusInterfaceDroppedRx)
		pk.Destroy()
		return
	}
	pk.Mark(packet.StatusInterfaceReceived)

	entry := router.Entry{Payload: pk, Bytes: pk.Len(), Arrival: now}
	if !dstHN.host.Router.Enqueue(entry, now) {
		pk.Mark(packet.StatusRouterDropped)
		pk.Destroy()
		return
	}
	pk.Mark(packet.StatusRouterEnqueued)

	out, ok, dropped := dstHN.host.Router.Dequeue(now)
	if !ok {
		return
	}
	delivered := out.Payload.(*packet.Packet)
	delivered.Mark(packet.StatusRouterDequeued)
	if dropped {
		delivered.Mark(packet.StatusRouterDropped)
		delivered.Destroy()
		return
	}

	var (
		dstPort uint16
		proto   socket.Protocol
	)
	switch delivered.Protocol() {
	case packet.ProtoUDP:
		dstPort = delivered.UDP().DstPort
		proto = socket.ProtoUDP
	case packet.ProtoTCP:
		dstPort = delivered.TCP().DstPort
		proto = socket.ProtoTCP
	}

	sk, ok := dstHN.binds.Lookup(proto, dstHN.primaryAddress(), dstPort)
	if !ok {
		delivered.Mark(packet.StatusSocketDropped)
		delivered.Destroy()
		return
	}

	n := sk.RecvQueue().Write(delivered.Payload().Bytes())
	if n > 0 {
		sk.Descriptor().AdjustStatus(descriptor.StatusReadable, true)
		delivered.Mark(packet.StatusSocketDelivered)
	} else {
		delivered.Mark(packet.StatusSocketDropped)
	}
	delivered.Destroy()
}

func (ns *netStack) doRecv(inst *shim.Instance, call shim.Call) shim.Return {
	hn, err := ns.hostNetByID(inst.HostID)
	if err != nil {
		return shim.Return{Err: err}
	}
	h, err := handleArg(call, 0)
	if err != nil {
		return shim.Return{Err: err}
	}
	n, err := intArg(call, 1)
	if err != nil {
		return shim.Return{Err: err}
	}

	sk, err := ns.socketAt(hn, h)
	if err != nil {
		return shim.Return{Err: err}
	}

	buf := make([]byte, n)
	got := sk.RecvQueue().Read(buf)
	if sk.RecvQueue().Len() == 0 {
		sk.Descriptor().AdjustStatus(descriptor.StatusReadable, false)
	}
	if got == 0 {
		return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallWouldBlock, "recv on descriptor %d would block", h)}
	}
	return shim.Return{Value: buf[:got]}
}

func (ns *netStack) doClose(inst *shim.Instance, call shim.Call) shim.Return {
	hn, err := ns.hostNetByID(inst.HostID)
	if err != nil {
		return shim.Return{Err: err}
	}
	h, err := handleArg(call, 0)
	if err != nil {
		return shim.Return{Err: err}
	}

	if sk, lookupErr := ns.socketAt(hn, h); lookupErr == nil {
		hn.binds.Unbind(sk)
	}
	hn.dropConn(h)

	if err := hn.host.Descriptors.Close(h); err != nil {
		return shim.Return{Err: err}
	}
	return shim.Return{}
}

func (ns *netStack) doEpollCreate(inst *shim.Instance, call shim.Call) shim.Return {
	hn, err := ns.hostNetByID(inst.HostID)
	if err != nil {
		return shim.Return{Err: err}
	}
	d := hn.host.Descriptors.Open(descriptor.KindEpoll, 0, nil)
	d.SetExt(descriptor.NewEpoll(d.Handle()))
	return shim.Return{Value: d.Handle()}
}

func (ns *netStack) doEpollCtlAdd(inst *shim.Instance, call shim.Call) shim.Return {
	hn, err := ns.hostNetByID(inst.HostID)
	if err != nil {
		return shim.Return{Err: err}
	}
	epollH, err := handleArg(call, 0)
	if err != nil {
		return shim.Return{Err: err}
	}
	watchH, err := handleArg(call, 1)
	if err != nil {
		return shim.Return{Err: err}
	}
	if len(call.Args) < 3 {
		return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "epoll_ctl_add: missing interest mask")}
	}
	mask, ok := call.Args[2].(descriptor.EpollEvent)
	if !ok {
		return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "epoll_ctl_add: argument 2 is not an interest mask")}
	}

	epollD, err := hn.host.Descriptors.Lookup(epollH)
	if err != nil {
		return shim.Return{Err: err}
	}
	e, ok := epollD.Ext().(*descriptor.Epoll)
	if !ok {
		return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "descriptor %d is not an epoll", epollH)}
	}

	watchD, err := hn.host.Descriptors.Lookup(watchH)
	if err != nil {
		return shim.Return{Err: err}
	}

	e.Add(watchD, mask)
	return shim.Return{}
}

func (ns *netStack) doEpollWait(inst *shim.Instance, call shim.Call) shim.Return {
	hn, err := ns.hostNetByID(inst.HostID)
	if err != nil {
		return shim.Return{Err: err}
	}
	epollH, err := handleArg(call, 0)
	if err != nil {
		return shim.Return{Err: err}
	}

	epollD, err := hn.host.Descriptors.Lookup(epollH)
	if err != nil {
		return shim.Return{Err: err}
	}
	e, ok := epollD.Ext().(*descriptor.Epoll)
	if !ok {
		return shim.Return{Err: shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "descriptor %d is not an epoll", epollH)}
	}

	return shim.Return{Value: e.Wait()}
}
