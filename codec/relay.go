// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"io"
)

// Relay forwards framed messages from src to dst without deserializing
// their payloads, the zero-copy path the package doc comment describes: a
// node with no type registered for a stream's payload can still relay it
// downstream.
//
// One call to Once reads whatever bytes are currently available from src,
// feeds them to an internal Decoder, and re-encodes every complete message
// that results onto dst via Encoder.EncodeSerialized. It returns the count
// of messages relayed and the first error encountered, if any; io.EOF from
// src is returned once with any messages relayed in the same call,
// matching io.Reader's "process what you got, then report EOF" contract.
type Relay struct {
	src io.Reader
	dst io.Writer
	dec *Decoder
	enc *Encoder
	buf []byte
}

// NewRelay constructs a Relay reading framed messages from src and
// forwarding them, re-framed but payload-untouched, to dst.
func NewRelay(dst io.Writer, src io.Reader, opts ...Option) *Relay {
	return &Relay{
		src: src,
		dst: dst,
		dec: NewDecoder(opts...),
		enc: NewEncoder(dst, opts...),
		buf: make([]byte, 32*1024),
	}
}

// Once performs a single read-decode-reencode pass. See the type doc
// comment for exact semantics.
func (r *Relay) Once() (relayed int, err error) {
	n, rerr := r.src.Read(r.buf)
	if n > 0 {
		r.dec.Feed(r.buf[:n])
	}

	for {
		msg, derr := r.dec.Decode()
		if derr != nil {
			if derr == ErrIncomplete {
				break
			}
			return relayed, derr
		}
		if _, werr := r.enc.EncodeSerialized(msg); werr != nil {
			return relayed, werr
		}
		relayed++
	}

	if rerr != nil {
		return relayed, rerr
	}
	return relayed, nil
}
