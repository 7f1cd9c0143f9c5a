//go:build linux

package netio

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/progcache/progcache/internal/cache/manager"
)

func startTestLoop(t *testing.T) (addr string, stop func()) {
	t.Helper()

	listenFD, err := Listen(0)
	require.NoError(t, err)

	sa, err := unix.Getsockname(listenFD)
	require.NoError(t, err)
	in4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok)

	mgr := manager.New(clock.New())
	loop, err := NewLoop(listenFD, mgr, 0, zerolog.Nop())
	require.NoError(t, err)

	go func() {
		_ = loop.Run()
	}()

	addr = net.JoinHostPort("127.0.0.1", itoa(in4.Port))
	return addr, func() {
		loop.Stop()
		loop.Close()
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func encodeFrame(args ...string) []byte {
	var payload []byte
	argCount := make([]byte, 4)
	binary.LittleEndian.PutUint32(argCount, uint32(len(args)))
	payload = append(payload, argCount...)
	for _, a := range args {
		l := make([]byte, 4)
		binary.LittleEndian.PutUint32(l, uint32(len(a)))
		payload = append(payload, l...)
		payload = append(payload, []byte(a)...)
	}
	frame := make([]byte, 4)
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	return append(frame, payload...)
}

func readResponse(t *testing.T, conn net.Conn) (status uint32, body []byte) {
	t.Helper()
	header := make([]byte, 4)
	_, err := readFull(conn, header)
	require.NoError(t, err)
	l := binary.LittleEndian.Uint32(header)

	rest := make([]byte, l)
	_, err = readFull(conn, rest)
	require.NoError(t, err)

	status = binary.LittleEndian.Uint32(rest[:4])
	body = rest[4:]
	return
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestLoopSetAndGet(t *testing.T) {
	addr, stop := startTestLoop(t)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(encodeFrame("set", "foo", "bar"))
	require.NoError(t, err)
	status, _ := readResponse(t, conn)
	require.Equal(t, uint32(0), status)

	_, err = conn.Write(encodeFrame("get", "foo"))
	require.NoError(t, err)
	status, body := readResponse(t, conn)
	require.Equal(t, uint32(0), status)
	require.Equal(t, "bar", string(body))
}

func TestLoopPipelinedRequests(t *testing.T) {
	addr, stop := startTestLoop(t)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	both := append(encodeFrame("set", "a", "1"), encodeFrame("get", "a")...)
	_, err = conn.Write(both)
	require.NoError(t, err)

	status1, _ := readResponse(t, conn)
	require.Equal(t, uint32(0), status1)
	status2, body2 := readResponse(t, conn)
	require.Equal(t, uint32(0), status2)
	require.Equal(t, "1", string(body2))
}

func TestLoopUnknownVerbIsErr(t *testing.T) {
	addr, stop := startTestLoop(t)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(encodeFrame("bogus"))
	require.NoError(t, err)
	status, _ := readResponse(t, conn)
	require.Equal(t, uint32(1), status)
}

func TestLoopMissingKeyIsNX(t *testing.T) {
	addr, stop := startTestLoop(t)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(encodeFrame("get", "missing"))
	require.NoError(t, err)
	status, _ := readResponse(t, conn)
	require.Equal(t, uint32(2), status)
}
