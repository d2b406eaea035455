// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

// Options configures an Encoder or Decoder.
type Options struct {
	// ScratchHint sizes an Encoder's reused scratch buffer up front to
	// avoid an early reallocation. Zero picks a conservative default.
	ScratchHint int
}

var defaultOptions = Options{ScratchHint: 4096}

// Option configures an Encoder or Decoder at construction time.
type Option func(*Options)

// WithScratchHint pre-sizes the Encoder's reusable scratch buffer.
func WithScratchHint(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.ScratchHint = n
		}
	}
}
