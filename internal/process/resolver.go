package process

import (
	"path"
	"strings"

	"go.uber.org/zap"
)

// DefaultInterpreterHosts lists runtime binaries whose own name says nothing
// about what they run. Matching is exact and case-sensitive.
var DefaultInterpreterHosts = []string{
	"node",
	"electron",
	"python",
	"Python",
}

// Resolver turns a pid plus the listing utility's name hint into a display
// name.
type Resolver struct {
	hosts  map[string]struct{}
	logger *zap.Logger
}

// NewResolver creates a Resolver that unwraps DefaultInterpreterHosts plus any
// extra host names.
func NewResolver(logger *zap.Logger, extraHosts ...string) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	hosts := make(map[string]struct{}, len(DefaultInterpreterHosts)+len(extraHosts))
	for _, h := range DefaultInterpreterHosts {
		hosts[h] = struct{}{}
	}
	for _, h := range extraHosts {
		if h = strings.TrimSpace(h); h != "" {
			hosts[h] = struct{}{}
		}
	}
	return &Resolver{hosts: hosts, logger: logger}
}

// IsInterpreterHost reports whether name is one of the configured hosts.
func (r *Resolver) IsInterpreterHost(name string) bool {
	_, ok := r.hosts[name]
	return ok
}

// Resolve returns the display name for pid. A pid present in table uses the
// table's name, replaced by the script name for interpreter hosts. A pid
// missing from table falls back to the cleaned hint.
func (r *Resolver) Resolve(table Table, pid uint32, hint string) string {
	entry, ok := table[pid]
	if !ok {
		r.logger.Debug("pid not in process table, using listing name",
			zap.Uint32("pid", pid), zap.String("hint", hint))
		return orUnknown(CleanName(hint))
	}

	name := CleanName(entry.Name)
	if r.IsInterpreterHost(name) {
		if script, ok := scriptName(entry.Args); ok {
			return script
		}
	}
	return orUnknown(name)
}

// scriptName returns the final path component of args[1] when it is a
// positional argument rather than a flag.
func scriptName(args []string) (string, bool) {
	if len(args) < 2 {
		return "", false
	}
	arg := args[1]
	if arg == "" || strings.HasPrefix(arg, "-") {
		return "", false
	}
	base := path.Base(strings.TrimRight(arg, "/"))
	if base == "." || base == ".." || base == "/" || base == "" {
		return "", false
	}
	return base, true
}

func orUnknown(name string) string {
	if name == "" {
		return UnknownName
	}
	return name
}
