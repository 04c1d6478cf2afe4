// Package transmitter implements the Art-Net Transmitter: it
// packetizes a device's output frame, maintains a per-(ip,universe)
// sequence counter, dedupes against the last frame sent for each device,
// and recovers from socket errors by rebuilding the UDP socket.
package transmitter

import (
	"log"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
	"github.com/IT-Networks/dmx-lighting-engine/internal/outputbuffer"
	"github.com/IT-Networks/dmx-lighting-engine/pkg/artnet"
)

// sendTimeout bounds a single UDP write.
const sendTimeout = 1 * time.Second

// errorThreshold is the number of consecutive send failures on one socket
// that triggers a rebuild.
const errorThreshold = 5

// logThrottle is the minimum interval between repeated error log lines for
// the same socket.
const logThrottle = 10 * time.Second

type socketState struct {
	conn        *net.UDPConn
	errCount    int
	lastErrLog  time.Time
}

// Transmitter owns one UDP socket per destination IP and the dedup/sequence
// state needed to emit Art-Net DMX frames for devices.
type Transmitter struct {
	mu sync.Mutex

	port int

	sockets    map[string]*socketState // keyed by ip
	seq        map[string]byte         // keyed by "ip:universe"
	lastSent   map[string][]byte       // keyed by device id
	devicesOn  map[string]map[string]bool // ip -> set of device ids last sent on it
}

// New creates a Transmitter sending to the given Art-Net UDP port
// (typically artnet.DefaultPort).
func New(port int) *Transmitter {
	if port <= 0 {
		port = artnet.DefaultPort
	}
	return &Transmitter{
		port:      port,
		sockets:   make(map[string]*socketState),
		seq:       make(map[string]byte),
		lastSent:  make(map[string][]byte),
		devicesOn: make(map[string]map[string]bool),
	}
}

// Send packetizes device's current values and emits a UDP datagram to
// (device.IP, port), unless the frame is identical to the last one sent for
// this device (dedup). It never raises to the caller; it returns
// whether a frame is now known to match device's state on the wire.
func (t *Transmitter) Send(device *model.Device) bool {
	frame := outputbuffer.Frame(device)

	t.mu.Lock()
	if cached, ok := t.lastSent[device.ID]; ok && bytesEqual(cached, frame) {
		t.mu.Unlock()
		return true
	}

	seqKey := device.IP + ":" + strconv.Itoa(device.Universe)
	t.seq[seqKey] = nextSequence(t.seq[seqKey])
	seq := t.seq[seqKey]

	sock, err := t.socketLocked(device.IP)
	if err != nil {
		t.mu.Unlock()
		log.Printf("⚠️  art-net: socket for %s unavailable: %v", device.IP, err)
		return false
	}
	t.mu.Unlock()

	packet := artnet.BuildDMXPacket(device.Universe, frame, seq)

	_ = sock.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	_, writeErr := sock.conn.Write(packet)

	t.mu.Lock()
	defer t.mu.Unlock()

	if writeErr != nil {
		t.recordErrorLocked(device.IP, sock, writeErr)
		return false
	}

	if sock.errCount > 0 {
		log.Printf("✅ art-net: socket for %s recovered after %d error(s)", device.IP, sock.errCount)
		sock.errCount = 0
	}
	t.lastSent[device.ID] = frame
	if t.devicesOn[device.IP] == nil {
		t.devicesOn[device.IP] = make(map[string]bool)
	}
	t.devicesOn[device.IP][device.ID] = true
	return true
}

// socketLocked returns the socket for ip, creating it if necessary. Caller
// must hold t.mu.
func (t *Transmitter) socketLocked(ip string) (*socketState, error) {
	if s, ok := t.sockets[ip]; ok {
		return s, nil
	}
	conn, err := dialBroadcast(ip, t.port)
	if err != nil {
		return nil, err
	}
	s := &socketState{conn: conn}
	t.sockets[ip] = s
	return s, nil
}

// recordErrorLocked bumps the error counter for ip's socket, rate-limits the
// log line, and rebuilds the socket once errorThreshold is reached.
// Caller must hold t.mu.
func (t *Transmitter) recordErrorLocked(ip string, sock *socketState, sendErr error) {
	sock.errCount++
	if time.Since(sock.lastErrLog) >= logThrottle {
		log.Printf("⚠️  art-net: send error to %s (%d consecutive): %v", ip, sock.errCount, sendErr)
		sock.lastErrLog = time.Now()
	}

	if sock.errCount < errorThreshold {
		return
	}

	log.Printf("🔌 art-net: rebuilding socket to %s after %d consecutive errors", ip, sock.errCount)
	_ = sock.conn.Close()
	delete(t.sockets, ip)

	// Cache invalidation: a rebuilt socket has no guarantee the other
	// side saw the last frame, so force the next Send for every device
	// previously sent on this ip to retransmit rather than dedup-skip.
	for id := range t.devicesOn[ip] {
		delete(t.lastSent, id)
	}
	delete(t.devicesOn, ip)
}

// Close shuts down all open sockets.
func (t *Transmitter) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ip, s := range t.sockets {
		_ = s.conn.Close()
		delete(t.sockets, ip)
	}
}

// nextSequence advances the per-universe counter, wrapping 1..255 and never
// emitting 0.
func nextSequence(cur byte) byte {
	if cur >= 255 {
		return 1
	}
	return cur + 1
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// dialBroadcast opens a UDP socket to ip:port with SO_BROADCAST enabled, so
// a broadcast-form device IP (e.g. a subnet's .255 address) can be used as
// well as ordinary unicast fixture addresses.
func dialBroadcast(ip string, port int) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", ip+":"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, err
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return conn, nil
	}
	_ = raw.Control(func(fd uintptr) {
		_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
	return conn, nil
}
