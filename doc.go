// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dataflow holds the data model shared by the streaming dataflow
// runtime's core subsystems: logical timestamps, stream identifiers, the
// Message/InterProcessMessage tagged unions, and the routing metadata
// carried alongside every inter-process send.
//
// Subpackages build on this model:
//   - codec: frames InterProcessMessage values to and from a byte stream.
//   - writestream: the producer-side stream endpoint with watermark and
//     fan-out discipline.
//   - state: per-operator time-versioned state gated by access context.
//   - notify: the broadcast notification bus.
package dataflow
