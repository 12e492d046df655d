// Package natives implements cinder's host runtime library: the small
// set of functions the VM exposes to scripts without those functions
// being expressible in cinder itself.
package natives

import (
	"time"

	"github.com/kristofer/cinder/pkg/value"
)

// Clock returns a native function equivalent to the original
// implementation's clock()/CLOCKS_PER_SEC: the number of seconds
// elapsed since start, as a float. start is normally the moment the
// host process began running the script, so repeated calls measure
// wall-clock elapsed time within one run.
func Clock(start time.Time) *value.ObjNative {
	return &value.ObjNative{
		Name:  "clock",
		Arity: 0,
		Fn: func(args []value.Value) (value.Value, error) {
			return value.Number(time.Since(start).Seconds()), nil
		},
	}
}
