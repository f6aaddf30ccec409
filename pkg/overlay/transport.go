package overlay

import (
	"time"

	"github.com/jcelaya/stars-sub002/pkg/types"
	"github.com/jcelaya/stars-sub002/pkg/wire"
)

// Transport is the send/timer abstraction OSP consumes (§1: "wire
// transport / message bus" is out of scope as an implementation, but
// the protocol needs something to send through and something to wait
// on). §5 requires FIFO delivery between a given (src,dst) pair; any
// concrete Transport (e.g. pkg/transport/libp2p) must uphold that.
type Transport interface {
	// Send delivers msg to to asynchronously; it must never block the
	// caller on a response (§5: "No handler may block on I/O").
	Send(to types.Address, msg wire.Message) error

	// AfterFunc arms a one-shot timer that invokes fn after d unless
	// cancelled first, mirroring the single suspension point §5 allows
	// besides returning from a handler. The returned Timer can be
	// stopped; a stopped timer must never fire (§5).
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is the cancellable handle AfterFunc returns.
type Timer interface {
	// Stop cancels the timer. It reports whether the cancellation
	// prevented the timer from firing.
	Stop() bool
}
