package port

import "sort"

// NameFunc resolves the display name for a parsed record.
type NameFunc func(ListenerRecord) string

// Aggregate merges records into one PortInfo per port. A later record for a
// port replaces an earlier one. The result is sorted by ascending port.
func Aggregate(records []ListenerRecord, name NameFunc) []PortInfo {
	byPort := make(map[uint16]PortInfo, len(records))
	for _, r := range records {
		byPort[r.Port] = PortInfo{
			PID:      r.PID,
			Name:     name(r),
			Port:     r.Port,
			Protocol: r.Protocol,
		}
	}

	out := make([]PortInfo, 0, len(byPort))
	for _, p := range byPort {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Port < out[j].Port
	})
	return out
}

// uniquePIDs returns the distinct pids of records in first-seen order.
func uniquePIDs(records []ListenerRecord) []uint32 {
	seen := make(map[uint32]struct{}, len(records))
	var pids []uint32
	for _, r := range records {
		if _, ok := seen[r.PID]; ok {
			continue
		}
		seen[r.PID] = struct{}{}
		pids = append(pids, r.PID)
	}
	return pids
}
