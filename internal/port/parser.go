package port

import (
	"strconv"
	"strings"
)

// minLsofColumns is the column count of a complete lsof line.
const minLsofColumns = 9

// ParseLsofOutput parses the columnar output from lsof -iTCP -sTCP:LISTEN -P -n.
// Each line after the header has fields: COMMAND PID USER FD TYPE DEVICE SIZE/OFF NODE NAME
// Malformed lines are skipped.
func ParseLsofOutput(output string) []ListenerRecord {
	lines := strings.Split(output, "\n")
	if len(lines) < 2 {
		return nil
	}

	var records []ListenerRecord
	for _, line := range lines[1:] {
		rec, ok := parseLsofLine(line)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// parseLsofLine parses a single lsof output line into a ListenerRecord.
// Format: COMMAND  PID  USER  FD  TYPE  DEVICE  SIZE/OFF  NODE  NAME
func parseLsofLine(line string) (ListenerRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) < minLsofColumns {
		return ListenerRecord{}, false
	}

	pid, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return ListenerRecord{}, false
	}

	port, ok := parseLocalPort(fields[8])
	if !ok {
		return ListenerRecord{}, false
	}

	return ListenerRecord{
		Command:  fields[0],
		PID:      uint32(pid),
		Protocol: TCP,
		Port:     port,
	}, true
}

// parseLocalPort extracts the port from the NAME field, e.g. "*:8080",
// "127.0.0.1:8080" or "[::1]:3000". The port is the leading run of digits
// after the last colon; lsof only reports LISTEN sockets here, so there is no
// remote half to skip.
func parseLocalPort(name string) (uint16, bool) {
	idx := strings.LastIndex(name, ":")
	if idx == -1 {
		return 0, false
	}

	digits := name[idx+1:]
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	port, err := strconv.ParseUint(digits[:end], 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(port), true
}
