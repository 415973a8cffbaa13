package transport

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConn wires a WSConn to one end of an in-memory pipe, with direct
// access to the raw bytes on the other end for frame-level assertions.
func newTestConn(t *testing.T) (*WSConn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	ws := &WSConn{conn: server, rw: bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server))}
	return ws, client
}

// maskedClientFrame builds the raw bytes of one client->server masked frame,
// the way a real browser client would send it.
func maskedClientFrame(t *testing.T, opcode byte, payload []byte) []byte {
	t.Helper()
	mask := [4]byte{0x1, 0x2, 0x3, 0x4}
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ mask[i%4]
	}

	var head []byte
	switch {
	case len(payload) <= 125:
		head = []byte{0x80 | opcode, 0x80 | byte(len(payload))}
	case len(payload) <= 0xFFFF:
		head = make([]byte, 4)
		head[0] = 0x80 | opcode
		head[1] = 0x80 | 126
		binary.BigEndian.PutUint16(head[2:], uint16(len(payload)))
	default:
		t.Fatalf("test helper doesn't support frames this large")
	}

	frame := append(head, mask[:]...)
	return append(frame, masked...)
}

// writeMaskedClientFrames writes one or more frames onto conn from a single
// goroutine, back to back and in order — net.Pipe rendezvous-per-Write-call
// means writing from more than one goroutine could interleave frame bytes.
func writeMaskedClientFrames(conn net.Conn, frames ...[]byte) {
	go func() {
		for _, f := range frames {
			if _, err := conn.Write(f); err != nil {
				return
			}
		}
	}()
}

func TestWSConn_ReadMessageDecodesMaskedTextFrame(t *testing.T) {
	ws, client := newTestConn(t)
	defer client.Close()

	writeMaskedClientFrames(client, maskedClientFrame(t, opText, []byte("hello")))

	payload, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))
}

func TestWSConn_ReadMessageAnswersPingWithPong(t *testing.T) {
	ws, client := newTestConn(t)
	defer client.Close()

	writeMaskedClientFrames(client,
		maskedClientFrame(t, opPing, []byte("ping-data")),
		maskedClientFrame(t, opText, []byte("after-ping")),
	)
	go io.Copy(io.Discard, client) // drain the server's pong reply

	payload, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "after-ping", string(payload))
}

func TestWSConn_ReadMessageReturnsEOFOnCloseFrame(t *testing.T) {
	ws, client := newTestConn(t)
	defer client.Close()

	writeMaskedClientFrames(client, maskedClientFrame(t, opClose, nil))
	go io.Copy(io.Discard, client) // drain the server's close-frame ack

	_, err := ws.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWSConn_WriteMessageProducesUnmaskedFrame(t *testing.T) {
	ws, client := newTestConn(t)
	defer client.Close()

	done := make(chan error, 1)
	go func() { done <- ws.WriteMessage([]byte("world")) }()

	head := make([]byte, 2)
	_, err := client.Read(head)
	require.NoError(t, err)

	assert.Equal(t, byte(0x80|opText), head[0], "FIN set, opcode text")
	assert.Equal(t, byte(5), head[1], "unmasked server frame: length only, no MASK bit")

	payload := make([]byte, 5)
	_, err = client.Read(payload)
	require.NoError(t, err)
	assert.Equal(t, "world", string(payload))

	require.NoError(t, <-done)
}
