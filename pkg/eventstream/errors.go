package eventstream

import "errors"

// ErrNilSessionEvent indicates a nil event payload was provided to a publisher.
var ErrNilSessionEvent = errors.New("nil session event")
