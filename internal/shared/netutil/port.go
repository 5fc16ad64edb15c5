package netutil

import (
	"fmt"
	"net"
	"strconv"
)

// FindUnusedPort returns the first port >= start that can be bound on 127.0.0.1.
func FindUnusedPort(start int) (int, error) {
	if start <= 0 {
		start = 1
	}
	for port := start; port < 65535; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no unused port at or above %d", start)
}
