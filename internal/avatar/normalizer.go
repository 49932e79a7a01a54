// Package avatar upgrades profile image URLs to their highest-resolution
// variant. The source site serves the same image under several size
// markers; only the marker portion of the path differs.
package avatar

import "strings"

// highRes is the largest variant the source site is known to serve.
const highRes = "_400x400"

// lowRes markers in the order they appear in the wild.
var lowRes = []string{"_normal", "_bigger", "_mini", "_200x200", "_x96"}

// Normalize rewrites url to the high-resolution variant. A nil input
// stays nil. Idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(url *string) *string {
	if url == nil {
		return nil
	}
	u := *url
	if u == "" {
		return url
	}
	if strings.Contains(u, highRes) {
		return url
	}
	// A marker only counts at the end of the file stem: "_mini" inside a
	// longer name like "alice_minimal.jpg" is not a size marker.
	for _, marker := range lowRes {
		idx := strings.LastIndex(u, marker)
		if idx < 0 {
			continue
		}
		rest := u[idx+len(marker):]
		if rest != "" && !strings.HasPrefix(rest, ".") {
			continue
		}
		out := u[:idx] + highRes + rest
		return &out
	}
	// No size marker at all: insert the high-res marker before the file
	// extension so the path still resolves.
	if dot := strings.LastIndex(u, "."); dot > strings.LastIndex(u, "/") {
		out := u[:dot] + highRes + u[dot:]
		return &out
	}
	out := u + highRes
	return &out
}
