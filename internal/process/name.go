package process

import "strings"

// UnknownName is shown when nothing at all is known about a port's owner.
const UnknownName = "Unknown"

// escapedSpace is how lsof and some process tables encode a space in a name.
const escapedSpace = `\x20`

// CleanName normalizes a raw or reported process name for display: escaped
// spaces become real spaces, backslashes are dropped, and surrounding
// whitespace is trimmed.
func CleanName(name string) string {
	name = strings.ReplaceAll(name, escapedSpace, " ")
	name = strings.ReplaceAll(name, `\`, "")
	return strings.TrimSpace(name)
}
