package installer

import "strings"

// transientSignatures are tool-output fragments that indicate the index or
// the network was unhealthy, not the package.
var transientSignatures = []string{
	"connection reset",
	"connection refused",
	"connection timed out",
	"read timed out",
	"temporary failure in name resolution",
	"proxy error",
	"502 bad gateway",
	"503 service unavailable",
	"retrying (retry(",
	"newconnectionerror",
	"remote end hung up",
}

// Classify maps install tool output to a failure class. Anything that does
// not look like a network problem is treated as a resolution failure, so
// flaky infrastructure never hides a real dependency conflict.
func Classify(output string) Class {
	lower := strings.ToLower(output)
	for _, sig := range transientSignatures {
		if strings.Contains(lower, sig) {
			return ClassTransient
		}
	}
	return ClassResolution
}
