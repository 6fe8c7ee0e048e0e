// Package engine adapts external model providers to the gateway's dialogue
// boundary: given the ordered turn history, produce exactly one reply turn.
// Implementations satisfy session.Completer.
package engine

import "github.com/pkg/errors"

// ErrUpstream marks any failure of the dialogue engine call, including
// timeouts. Callers surface it as a generic upstream failure; the wrapped
// detail is for logs only and never includes credentials.
var ErrUpstream = errors.New("dialogue engine call failed")
