package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLsofOutput(t *testing.T) {
	input := `COMMAND     PID      USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
nginx      1234      root    6u  IPv4 0x1234567890      0t0  TCP *:80 (LISTEN)
nginx      1234      root    7u  IPv4 0x1234567891      0t0  TCP *:443 (LISTEN)
node       5678   zhengda    8u  IPv6 0x1234567892      0t0  TCP *:3000 (LISTEN)
postgres   9012 _postgres    9u  IPv4 0x1234567893      0t0  TCP 127.0.0.1:5432 (LISTEN)
java       3456   zhengda   10u  IPv6 0x1234567894      0t0  TCP [::1]:8080 (LISTEN)
`

	records := ParseLsofOutput(input)
	require.Len(t, records, 5)

	tests := []struct {
		idx     int
		command string
		pid     uint32
		port    uint16
	}{
		{0, "nginx", 1234, 80},
		{1, "nginx", 1234, 443},
		{2, "node", 5678, 3000},
		{3, "postgres", 9012, 5432},
		{4, "java", 3456, 8080},
	}

	for _, tt := range tests {
		r := records[tt.idx]
		assert.Equal(t, tt.command, r.Command, "[%d] command", tt.idx)
		assert.Equal(t, tt.pid, r.PID, "[%d] pid", tt.idx)
		assert.Equal(t, tt.port, r.Port, "[%d] port", tt.idx)
		assert.Equal(t, TCP, r.Protocol, "[%d] protocol", tt.idx)
	}
}

func TestParseLsofOutput_MalformedLinesSkipped(t *testing.T) {
	input := `COMMAND     PID      USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
short line
nginx      abc      root    6u  IPv4 0x1       0t0  TCP *:80 (LISTEN)
nginx      -5       root    6u  IPv4 0x1       0t0  TCP *:81 (LISTEN)
nginx      12       root    6u  IPv4 0x1       0t0  TCP localhost (LISTEN)
nginx      13       root    6u  IPv4 0x1       0t0  TCP *:* (LISTEN)
nginx      14       root    6u  IPv4 0x1       0t0  TCP *:70000 (LISTEN)
nginx      15       root    6u  IPv4 0x1       0t0  TCP *:99999999999999999999 (LISTEN)
redis      16       root    6u  IPv4 0x1       0t0  TCP *:6379 (LISTEN)


sshd       17       root    3u  IPv4 0x1       0t0  TCP *:22 (LISTEN)
`

	records := ParseLsofOutput(input)
	require.Len(t, records, 2)
	assert.Equal(t, uint16(6379), records[0].Port)
	assert.Equal(t, uint32(16), records[0].PID)
	assert.Equal(t, uint16(22), records[1].Port)
	assert.Equal(t, "sshd", records[1].Command)
}

func TestParseLsofOutput_EmptyInput(t *testing.T) {
	assert.Empty(t, ParseLsofOutput(""))
}

func TestParseLsofOutput_HeaderOnly(t *testing.T) {
	input := `COMMAND     PID      USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
`
	assert.Empty(t, ParseLsofOutput(input))
}

func TestParseLsofOutput_HeaderAlwaysSkipped(t *testing.T) {
	// A first line that looks like data is still treated as the header.
	input := "node 1 u 1u IPv4 0x1 0t0 TCP *:1 (LISTEN)\nnode 2 u 1u IPv4 0x1 0t0 TCP *:2 (LISTEN)"

	records := ParseLsofOutput(input)
	require.Len(t, records, 1)
	assert.Equal(t, uint16(2), records[0].Port)
}

func TestParseLsofOutput_EscapedCommand(t *testing.T) {
	input := `COMMAND     PID      USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
Code\x20H  4321   zhengda   30u  IPv4 0x1234567890      0t0  TCP 127.0.0.1:9229 (LISTEN)
`
	records := ParseLsofOutput(input)
	require.Len(t, records, 1)
	assert.Equal(t, `Code\x20H`, records[0].Command)
}

func TestParseLocalPort(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantPort uint16
		wantOK   bool
	}{
		{"listen wildcard", "*:8080", 8080, true},
		{"listen localhost", "127.0.0.1:3000", 3000, true},
		{"ipv6 loopback", "[::1]:5432", 5432, true},
		{"ipv6 zone", "[fe80::1%lo0]:631", 631, true},
		{"trailing junk", "*:443(LISTEN)", 443, true},
		{"port zero", "*:0", 0, true},
		{"max port", "*:65535", 65535, true},
		{"wildcard star", "*:*", 0, false},
		{"no colon", "localhost", 0, false},
		{"out of range", "*:65536", 0, false},
		{"empty port", "127.0.0.1:", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, ok := parseLocalPort(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}
