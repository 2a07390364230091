package unix

import (
	"bufio"
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/ValentinKolb/rfwd/rpc/resp"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestUnixRoundTrip connects over a unix socket and reads a pipelined reply
func TestUnixRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "rfwd")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "redis.sock")

	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			if _, err := resp.ReadReply(r); err != nil {
				return
			}
			if _, err := conn.Write([]byte(":1\r\n")); err != nil {
				return
			}
		}
	}()

	client := NewUnixClient()
	err = client.Connect(common.ClientConfig{
		Endpoint:       path,
		ConnectTimeout: time.Second,
		RecvTimeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.Send(resp.SerializeCommand("INCR", "counter")); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	reply, err := client.Recv()
	if err != nil {
		t.Fatalf("Failed to receive: %v", err)
	}
	if reply.Int != 1 {
		t.Errorf("Expected integer reply 1, got %+v", reply)
	}
}
