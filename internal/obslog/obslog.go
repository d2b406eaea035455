// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package obslog is the runtime core's shared structured logger. Every
// subpackage logs through L rather than constructing its own zap.Logger,
// so a single call to SetLogger retargets diagnostics for the whole
// module (tests default to a no-op logger; a hosting process installs its
// own production config at startup).
package obslog

import "go.uber.org/zap"

// L is the logger used throughout the module. It defaults to zap's no-op
// logger so importing this module never writes to stderr uninvited.
var L = zap.NewNop()

// SetLogger replaces L. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	L = l
}
