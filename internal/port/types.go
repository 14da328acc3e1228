package port

import "fmt"

// Protocol represents a network protocol.
type Protocol string

const (
	TCP Protocol = "TCP"
	// UDP is not produced by the listing pipeline yet.
	UDP Protocol = "UDP"
)

// ListenerRecord is one parsed line of lsof output.
type ListenerRecord struct {
	Command  string // lsof COMMAND column, a fallback display name
	PID      uint32
	Protocol Protocol
	Port     uint16
}

// PortInfo is one listening port and the process that owns it.
type PortInfo struct {
	PID      uint32   `json:"pid"`
	Name     string   `json:"name"`
	Port     uint16   `json:"port"`
	Protocol Protocol `json:"protocol"`
}

// String returns a human-readable representation of the entry.
func (p PortInfo) String() string {
	return fmt.Sprintf("%d/%s (PID %d, %s)", p.Port, p.Protocol, p.PID, p.Name)
}
