// Package config loads optional tuning knobs for a Breccia store from a
// JWCC (JSON-with-comments) file, the same way the donor tool's top-level
// config.go loads its own .tk.json: standardize with hujson, then decode
// with encoding/json.
//
// None of these options affect on-disk format or semantics — they only
// tune collision-probe bounds, fsync behavior, and writer-lock timeouts.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

// DefaultCollisionProbeLimit bounds the padding collision-avoidance loop
// (see the writer's append algorithm) so that pathological input fails
// loudly instead of looping unboundedly.
const DefaultCollisionProbeLimit = 1 << 20

// Options tunes a store's writer behavior. The zero value is not
// necessarily usable; construct one with Default or Load.
type Options struct {
	// FsyncOnCommit controls whether Batch.Commit calls fsync after the
	// Clean-flip write. Setting it false trades cross-process durability
	// for throughput.
	FsyncOnCommit bool `json:"fsync_on_commit"` //nolint:tagliatelle // snake_case for config file

	// LockTimeout bounds how long Create/OpenMut wait for the writer
	// lock before returning ErrWriterLocked. Zero means block
	// indefinitely.
	LockTimeout time.Duration `json:"lock_timeout,omitempty"` //nolint:tagliatelle // snake_case for config file

	// CollisionProbeLimit caps the padding search during append. Zero or
	// negative means DefaultCollisionProbeLimit.
	CollisionProbeLimit int `json:"collision_probe_limit,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// Default returns the baseline options: fsync on every commit, block
// indefinitely for the writer lock, and the default collision probe bound.
func Default() Options {
	return Options{
		FsyncOnCommit:       true,
		LockTimeout:         0,
		CollisionProbeLimit: DefaultCollisionProbeLimit,
	}
}

// Load reads path as JWCC and overlays it onto Default(). A missing file
// is not an error: Load returns Default() unchanged.
func Load(path string) (Options, error) {
	opts := Default()

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled, like the donor's config loader
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}

		return Options{}, fmt.Errorf("config: reading %q: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Options{}, fmt.Errorf("config: %q is not valid JWCC: %w", path, err)
	}

	// Fields are pointers here, distinct from Options, so that an
	// explicit `false`/`0` in the file can be told apart from the field
	// being absent altogether — a plain bool/int overlay could only ever
	// turn FsyncOnCommit on, never off.
	var overlay struct {
		FsyncOnCommit   *bool  `json:"fsync_on_commit,omitempty"`   //nolint:tagliatelle // snake_case for config file
		LockTimeoutMS   *int64 `json:"lock_timeout_ms,omitempty"`   //nolint:tagliatelle // snake_case for config file
		CollisionProbeLimit *int `json:"collision_probe_limit,omitempty"` //nolint:tagliatelle // snake_case for config file
	}

	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return Options{}, fmt.Errorf("config: decoding %q: %w", path, err)
	}

	if overlay.FsyncOnCommit != nil {
		opts.FsyncOnCommit = *overlay.FsyncOnCommit
	}

	if overlay.LockTimeoutMS != nil {
		opts.LockTimeout = time.Duration(*overlay.LockTimeoutMS) * time.Millisecond
	}

	if overlay.CollisionProbeLimit != nil {
		opts.CollisionProbeLimit = *overlay.CollisionProbeLimit
	}

	return opts, nil
}
