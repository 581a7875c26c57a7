package dispatch

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstsee/servicehost/internal/logger"
	"github.com/firstsee/servicehost/pkg/host"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter(io.Discard, "error", "text", false)
	m.Run()
}

func runEcho(t *testing.T, e *Echo) (net.Conn, <-chan error) {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })

	done := make(chan error, 1)
	go func() {
		req := host.NewRequest(server)
		defer req.Close()
		done <- e.Process(context.Background(), req)
	}()
	return client, done
}

func TestEchoRoundTrip(t *testing.T) {
	client, done := runEcho(t, NewEcho())

	_, err := client.Write([]byte("hello world\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", line)

	client.Close()
	require.NoError(t, <-done)
}

func TestEchoSkipsBlankLines(t *testing.T) {
	client, done := runEcho(t, NewEcho())

	_, err := client.Write([]byte("\n\nping\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ping\n", line)

	client.Close()
	require.NoError(t, <-done)
}

func TestEchoSkipsWhitespaceLinesWithOperations(t *testing.T) {
	e := NewEcho()
	e.SetOperations([]string{"echo"})

	client, done := runEcho(t, e)

	// A whitespace-only line carries no operation token; it is skipped,
	// not rejected.
	_, err := client.Write([]byte("   \n\t\necho hi\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo hi\n", line)

	client.Close()
	require.NoError(t, <-done)
}

func TestEchoRejectsUnknownOperation(t *testing.T) {
	e := NewEcho()
	e.SetOperations([]string{"echo", "ping"})

	client, done := runEcho(t, e)

	_, err := client.Write([]byte("shutdown now\n"))
	require.NoError(t, err)

	err = <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized operation")
}

func TestEchoAllowsKnownOperation(t *testing.T) {
	e := NewEcho()
	e.SetOperations([]string{"echo"})

	client, done := runEcho(t, e)

	_, err := client.Write([]byte("echo payload\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo payload\n", line)

	client.Close()
	require.NoError(t, <-done)
}
