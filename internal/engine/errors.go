package engine

import "errors"

// Engine-level error kinds. Transport-level SdpApplyError lives in
// rtctransport.
var (
	ErrDuplicatePublication = errors.New("engine: cid already pending publication")
	ErrPublish              = errors.New("engine: no data channel available for this kind")
	ErrConnect              = errors.New("engine: publisher did not reach connected before timeout")
	ErrReconnectExhausted   = errors.New("engine: reconnect exhausted retries or timeout")
	ErrSignalClosed         = errors.New("engine: signal link closed")
	ErrFailToConnect        = errors.New("engine: failed during initial join")
	ErrClosed               = errors.New("engine: session is closed")
)
