//go:build !unix

package fallback

import "context"

func checkDisk(_ context.Context, _ *Env, _ Target) (Status, string) {
	return StatusNotApplicable, "disk stats unsupported on this platform"
}
