//go:build !((linux && cgo) || windows || darwin)

package speaker

import "errors"

// Available reports whether this build can reach a sound card.
const Available = false

var ErrNoAudio = errors.New("audio output requires a cgo build")

func Default() (Output, error) {
	return nil, ErrNoAudio
}
