package tunnel

import "fmt"

// Service is one tunnel provider: a display name and the full command line
// (executable first) that forwards the local port.
type Service struct {
	Name    string
	Command []string
}

var sshDefaultParams = []string{
	"-o", "StrictHostKeyChecking=no",
	"-o", "ServerAliveInterval=30",
	"-o", "ConnectTimeout=5",
}

// DefaultServices returns the fixed provider list for localPort, most
// convenient first.
func DefaultServices(localPort int) []Service {
	forward80 := fmt.Sprintf("-R80:localhost:%d", localPort)
	forward0 := fmt.Sprintf("-R0:localhost:%d", localPort)

	return []Service{
		{
			Name:    "localhost.run",
			Command: sshCommand(nil, forward80, "nokey@localhost.run"),
		},
		{
			Name:    "serveo.net",
			Command: sshCommand(nil, forward80, "serveo.net"),
		},
		{
			Name:    "pinggy.io",
			Command: sshCommand([]string{"-p", "443"}, "-t", forward0, "a.pinggy.io", "x:passpreflight"),
		},
	}
}

func sshCommand(leading []string, trailing ...string) []string {
	cmd := []string{"ssh"}
	cmd = append(cmd, leading...)
	cmd = append(cmd, sshDefaultParams...)
	return append(cmd, trailing...)
}
