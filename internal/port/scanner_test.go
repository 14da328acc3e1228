package port

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/lu-zhengda/portsniper/internal/process"
	"github.com/lu-zhengda/portsniper/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lsofHeader = "COMMAND     PID      USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME\n"

func commandName(r ListenerRecord) string { return r.Command }

func TestAggregate_SortedByPort(t *testing.T) {
	records := []ListenerRecord{
		{Command: "nginx", PID: 1, Protocol: TCP, Port: 8443},
		{Command: "httpd", PID: 2, Protocol: TCP, Port: 80},
		{Command: "node", PID: 3, Protocol: TCP, Port: 3000},
	}

	got := Aggregate(records, commandName)

	require.Len(t, got, 3)
	assert.Equal(t, []uint16{80, 3000, 8443}, []uint16{got[0].Port, got[1].Port, got[2].Port})
	assert.Equal(t, "httpd", got[0].Name)
}

func TestAggregate_LastRecordWins(t *testing.T) {
	records := []ListenerRecord{
		{Command: "old", PID: 100, Protocol: TCP, Port: 8080},
		{Command: "other", PID: 200, Protocol: TCP, Port: 9090},
		{Command: "new", PID: 101, Protocol: TCP, Port: 8080},
	}

	got := Aggregate(records, commandName)

	require.Len(t, got, 2)
	assert.Equal(t, PortInfo{PID: 101, Name: "new", Port: 8080, Protocol: TCP}, got[0])
	assert.Equal(t, uint16(9090), got[1].Port)
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil, commandName)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAggregate_UniquePorts(t *testing.T) {
	var records []ListenerRecord
	for i := 0; i < 50; i++ {
		records = append(records, ListenerRecord{PID: uint32(i), Protocol: TCP, Port: uint16(i % 7)})
	}

	got := Aggregate(records, commandName)

	require.Len(t, got, 7)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Port, got[i].Port)
	}
}

func TestUniquePIDs(t *testing.T) {
	records := []ListenerRecord{{PID: 5}, {PID: 3}, {PID: 5}, {PID: 9}, {PID: 3}}
	assert.Equal(t, []uint32{5, 3, 9}, uniquePIDs(records))
}

func newTestScanner(r runner.CmdRunner, table process.Table) *LsofScanner {
	return NewLsofScanner(r, &process.StaticSource{Table: table}, process.NewResolver(nil), nil)
}

func TestLsofScanner_ListPorts_EndToEnd(t *testing.T) {
	out := lsofHeader +
		"node    1234   user   22u  IPv4 0xabc      0t0  TCP *:3000 (LISTEN)\n"
	r := &runner.MultiMock{Responses: map[string]runner.Response{
		"lsof -iTCP -sTCP:LISTEN -P -n": {Output: []byte(out)},
	}}
	table := process.Table{
		1234: {Name: "node", Args: []string{"node", "/home/app/server.js"}},
	}

	ports, err := newTestScanner(r, table).ListPorts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []PortInfo{{PID: 1234, Name: "server.js", Port: 3000, Protocol: TCP}}, ports)
}

func TestLsofScanner_ListPorts_Resolution(t *testing.T) {
	out := lsofHeader +
		"nginx   100   root    6u  IPv4 0x1   0t0  TCP *:443 (LISTEN)\n" +
		"nginx   100   root    7u  IPv6 0x2   0t0  TCP *:443 (LISTEN)\n" +
		"Python  200   me      3u  IPv4 0x3   0t0  TCP 127.0.0.1:8000 (LISTEN)\n" +
		"gone\\x20d 300 me     3u  IPv4 0x4   0t0  TCP *:9000 (LISTEN)\n" +
		"nodeJS  400   me      3u  IPv4 0x5   0t0  TCP *:5000 (LISTEN)\n"
	r := &runner.Mock{Output: []byte(out)}
	table := process.Table{
		100: {Name: "nginx", Args: []string{"nginx: master process"}},
		200: {Name: "Python", Args: []string{"Python", "-m", "http.server"}},
		400: {Name: "nodeJS", Args: []string{"nodeJS", "/srv/app.js"}},
	}

	ports, err := newTestScanner(r, table).ListPorts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []PortInfo{
		{PID: 100, Name: "nginx", Port: 443, Protocol: TCP},
		{PID: 400, Name: "nodeJS", Port: 5000, Protocol: TCP},
		{PID: 200, Name: "Python", Port: 8000, Protocol: TCP},
		{PID: 300, Name: "gone d", Port: 9000, Protocol: TCP},
	}, ports)
}

func TestLsofScanner_ListPorts_NothingListening(t *testing.T) {
	// lsof exits 1 with empty output when no socket matches.
	r := &runner.Mock{Err: &runner.CommandError{Name: "lsof", Kind: runner.KindExit, ExitCode: 1}}

	ports, err := newTestScanner(r, nil).ListPorts(context.Background())

	require.NoError(t, err)
	assert.Empty(t, ports)
}

func TestLsofScanner_ListPorts_PartialOutputOnExit(t *testing.T) {
	out := lsofHeader + "sshd 17 root 3u IPv4 0x1 0t0 TCP *:22 (LISTEN)\n"
	r := &runner.Mock{
		Output: []byte(out),
		Err:    &runner.CommandError{Name: "lsof", Kind: runner.KindExit, ExitCode: 1, Stderr: "lsof: WARNING: can't stat()"},
	}

	ports, err := newTestScanner(r, nil).ListPorts(context.Background())

	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, "sshd", ports[0].Name)
}

func TestLsofScanner_ListPorts_LaunchFailure(t *testing.T) {
	r := &runner.Mock{
		Output: []byte(lsofHeader + "sshd 17 root 3u IPv4 0x1 0t0 TCP *:22 (LISTEN)\n"),
		Err:    &runner.CommandError{Name: "lsof", Kind: runner.KindLaunch, Err: exec.ErrNotFound},
	}

	ports, err := newTestScanner(r, nil).ListPorts(context.Background())

	require.Error(t, err)
	assert.Nil(t, ports)
	var cerr *runner.CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, runner.KindLaunch, cerr.Kind)
}

func TestLsofScanner_ListPorts_Timeout(t *testing.T) {
	r := &runner.Mock{Err: &runner.CommandError{Name: "lsof", Kind: runner.KindTimeout, Err: context.DeadlineExceeded}}

	_, err := newTestScanner(r, nil).ListPorts(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLsofScanner_ListPorts_TableFailure(t *testing.T) {
	r := &runner.Mock{Output: []byte(lsofHeader + "sshd 17 root 3u IPv4 0x1 0t0 TCP *:22 (LISTEN)\n")}
	s := NewLsofScanner(r, &process.StaticSource{Err: errors.New("denied")}, nil, nil)

	_, err := s.ListPorts(context.Background())

	assert.ErrorContains(t, err, "denied")
}

func TestLsofScanner_FindByPort(t *testing.T) {
	out := lsofHeader +
		"nginx 100 root 6u IPv4 0x1 0t0 TCP *:80 (LISTEN)\n" +
		"redis 200 root 6u IPv4 0x1 0t0 TCP *:6379 (LISTEN)\n"
	s := newTestScanner(&runner.Mock{Output: []byte(out)}, nil)

	p, err := s.FindByPort(context.Background(), 6379)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint32(200), p.PID)

	p, err = s.FindByPort(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLsofScanner_FindByProcess(t *testing.T) {
	out := lsofHeader +
		"nginx 100 root 6u IPv4 0x1 0t0 TCP *:80 (LISTEN)\n" +
		"nginx 100 root 7u IPv4 0x1 0t0 TCP *:443 (LISTEN)\n" +
		"redis 200 root 6u IPv4 0x1 0t0 TCP *:6379 (LISTEN)\n"
	s := newTestScanner(&runner.Mock{Output: []byte(out)}, nil)

	got, err := s.FindByProcess(context.Background(), "NGI")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint16(80), got[0].Port)
	assert.Equal(t, uint16(443), got[1].Port)
}
