// Package oto plays the engine's audio through the system audio device.
package oto

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ebitengine/oto/v3"

	"github.com/hkarvila/komppi"
)

type (
	Context struct {
		context *oto.Context
	}

	// Output adapts the pull-based oto player to the push-based AudioSink.
	// WriteAudio blocks until the device consumes the buffer, which is the
	// backpressure the render loop paces itself by.
	Output struct {
		player    *oto.Player
		pipe      *io.PipeWriter
		tmpBuffer []byte
	}
)

const sampleRate = 44100

// NewContext opens the audio device for 44.1 kHz stereo float output.
func NewContext() (*Context, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{context: context}, nil
}

func (c *Context) Output() komppi.AudioSink {
	pr, pw := io.Pipe()
	player := c.context.NewPlayer(pr)
	player.Play()
	return &Output{player: player, pipe: pw, tmpBuffer: make([]byte, 0)}
}

// Close is a no-op; the underlying context owns no closable handle.
func (c *Context) Close() error { return nil }

func (o *Output) WriteAudio(floatBuffer []float32) error {
	// reuse the old capacity of tmpBuffer by truncating it, then keep the
	// grown buffer for the next call
	o.tmpBuffer = floatBufferToLE(floatBuffer, o.tmpBuffer[:0])
	if _, err := o.pipe.Write(o.tmpBuffer); err != nil {
		return fmt.Errorf("cannot write to player: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	o.pipe.Close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

func floatBufferToLE(floatBuffer []float32, out []byte) []byte {
	for _, v := range floatBuffer {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}
