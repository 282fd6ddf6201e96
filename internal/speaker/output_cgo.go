//go:build (linux && cgo) || windows || darwin

package speaker

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	beepspeaker "github.com/gopxl/beep/v2/speaker"
)

// Available reports whether this build can reach a sound card.
const Available = true

const sampleRate = beep.SampleRate(44100)

var (
	initOnce sync.Once
	initErr  error
)

type device struct{}

// Default initialises the sound card on first use.
func Default() (Output, error) {
	initOnce.Do(func() {
		initErr = beepspeaker.Init(sampleRate, sampleRate.N(time.Second/10))
	})
	if initErr != nil {
		return nil, initErr
	}
	return device{}, nil
}

func (device) SampleRate() beep.SampleRate { return sampleRate }
func (device) Play(s beep.Streamer)        { beepspeaker.Play(s) }
func (device) Lock()                       { beepspeaker.Lock() }
func (device) Unlock()                     { beepspeaker.Unlock() }
