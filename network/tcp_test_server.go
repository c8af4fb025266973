package network

import (
	"bufio"
	"fmt"
	"net"
	"sync"
)

// TCPTestServer is for mocking misbehaving boxes in unit tests: boxes
// that accept a connection and then never answer, or hang up without
// sending an HTTP response.
type TCPTestServer struct {
	listener net.Listener
	mutex    sync.Mutex
	conns    []net.Conn
}

// NewTCPTestServer creates a new TCP server.
// Use listenAddress "127.0.0.1:0", then check TCPTestServer.Addr()
// to get the address we're listening on. (System assigns port when port is zero.)
// Callback runs in its own goroutine for each connection.
func NewTCPTestServer(listenAddress string, callback func(net.Conn)) *TCPTestServer {
	listener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		panic(fmt.Sprintf("Error listening tcp server: %v", err.Error()))
	}
	server := &TCPTestServer{
		listener: listener,
		conns:    make([]net.Conn, 0),
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				// Listener was closed.
				return
			}
			server.mutex.Lock()
			server.conns = append(server.conns, conn)
			server.mutex.Unlock()
			go callback(conn)
		}
	}()
	return server
}

// Addr returns the host:port the server is listening on.
func (server *TCPTestServer) Addr() string {
	return server.listener.Addr().String()
}

// Close stops listening and closes every open connection.
func (server *TCPTestServer) Close() {
	server.listener.Close()
	server.mutex.Lock()
	for _, conn := range server.conns {
		conn.Close()
	}
	server.mutex.Unlock()
}

// HangCallback reads from the connection and never answers.
func HangCallback(conn net.Conn) {
	buf := make([]byte, 1024)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

// StalledBodyCallback answers the request with the headers and first
// few bytes of a 200 response, then stops sending.
func StalledBodyCallback(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		if line == "\r\n" {
			break
		}
	}
	conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 1000\r\n\r\nabc"))
	HangCallback(conn)
}

// HangUpCallback closes the connection as soon as it opens.
func HangUpCallback(conn net.Conn) {
	conn.Close()
}
