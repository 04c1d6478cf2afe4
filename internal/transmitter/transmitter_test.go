package transmitter

import (
	"net"
	"testing"
	"time"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

// listenUDP opens a loopback UDP listener for a fake fixture and returns its
// port, so tests can assert on actual wire bytes.
func listenUDP(t *testing.T) (*net.UDPConn, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func recvOne(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 600)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return buf[:n]
}

func TestSendEmitsExactFrameAtDeviceWindow(t *testing.T) {
	listener, port := listenUDP(t)
	tr := New(port)

	d := &model.Device{
		ID: "d1", IP: "127.0.0.1", Universe: 0,
		StartChannel: 1, ChannelCount: 3, Values: []int{255, 128, 0},
	}

	if ok := tr.Send(d); !ok {
		t.Fatal("Send() = false, want true")
	}

	packet := recvOne(t, listener)
	if len(packet) != 530 {
		t.Fatalf("packet length = %d, want 530", len(packet))
	}
	if string(packet[0:8]) != "Art-Net\x00" {
		t.Errorf("header = %q", packet[0:8])
	}
	if packet[18] != 255 || packet[19] != 128 || packet[20] != 0 {
		t.Errorf("channel data = %v, want [255 128 0]", packet[18:21])
	}
}

func TestSendDedupsIdenticalFrames(t *testing.T) {
	listener, port := listenUDP(t)
	tr := New(port)

	d := &model.Device{ID: "d1", IP: "127.0.0.1", Universe: 0, StartChannel: 1, ChannelCount: 1, Values: []int{42}}

	if !tr.Send(d) {
		t.Fatal("first Send() = false")
	}
	recvOne(t, listener)

	if !tr.Send(d) {
		t.Fatal("second Send() (identical) = false")
	}

	_ = listener.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 600)
	if _, err := listener.Read(buf); err == nil {
		t.Fatal("expected no second datagram for an identical frame")
	}
}

func TestSendRetransmitsAfterValueChange(t *testing.T) {
	listener, port := listenUDP(t)
	tr := New(port)

	d := &model.Device{ID: "d1", IP: "127.0.0.1", Universe: 0, StartChannel: 1, ChannelCount: 1, Values: []int{1}}
	tr.Send(d)
	recvOne(t, listener)

	d.Values = []int{2}
	if !tr.Send(d) {
		t.Fatal("Send() after value change = false")
	}
	recvOne(t, listener)
}

func TestSequenceWrapsAndNeverEmitsZero(t *testing.T) {
	_, port := listenUDP(t)
	tr := New(port)

	got := byte(0)
	for i := 0; i < 300; i++ {
		got = nextSequence(got)
		if got == 0 {
			t.Fatalf("sequence hit 0 at iteration %d", i)
		}
	}
	_ = tr
}

func TestSendFailsGracefullyWhenUnreachable(t *testing.T) {
	tr := New(1) // port 1 is typically unusable without privilege / refused
	d := &model.Device{ID: "d1", IP: "127.0.0.1", Universe: 0, StartChannel: 1, ChannelCount: 1, Values: []int{1}}
	// Should never panic, regardless of the outcome.
	_ = tr.Send(d)
}
