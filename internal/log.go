package internal

import (
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"
)

func init() {
	l := zerolog.New(io.Discard)
	Logger.Store(&l)
}

// Logger receives the records of loaders, suite runs and replays. Matching
// never logs. It discards everything until the caller stores its own logger.
var Logger atomic.Pointer[zerolog.Logger]
