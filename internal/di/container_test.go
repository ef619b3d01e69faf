package di

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmcp-inspector/internal/usecase/toolsource"
)

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(Config{LogLevel: "error"})
	require.NoError(t, err)
	defer c.Close(context.Background())

	assert.NotNil(t, c.Logger)
	assert.NotNil(t, c.Metrics)
	assert.NotNil(t, c.HTTP)
	assert.NotNil(t, c.MCP)
	assert.False(t, c.Source.IsConnected())
	assert.Empty(t, c.Source.ListTools())
}

func TestNewContainerLogDir(t *testing.T) {
	dir := t.TempDir()
	c, err := NewContainer(Config{LogLevel: "debug", LogDir: dir, LogName: "serve"})
	require.NoError(t, err)
	c.Close(context.Background())
}

func TestConnectUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	c, err := NewContainer(Config{Host: "127.0.0.1", Port: port, LogLevel: "error"})
	require.NoError(t, err)
	defer c.Close(context.Background())

	_, err = c.Connect(context.Background())
	assert.ErrorIs(t, err, toolsource.ErrEndpointUnreachable)
	assert.False(t, c.Source.IsConnected())
}
