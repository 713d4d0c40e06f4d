package display

import (
	"bufio"
	"io"
	"strings"

	"github.com/maskpipe/maskpipe/internal/logger"
	"github.com/maskpipe/maskpipe/internal/shutdown"
)

// WatchStopKey reads key input from r (normally stdin) and trips the
// coordinator when the configured stop key arrives. Runs until the
// input closes; the goroutine costs nothing once the process exits.
func WatchStopKey(r io.Reader, stopKey string, coord *shutdown.Coordinator) {
	key := strings.ToLower(stopKey)
	go func() {
		reader := bufio.NewReader(r)
		for {
			b, err := reader.ReadByte()
			if err != nil {
				return
			}
			if strings.ToLower(string(b)) == key {
				logger.WithComponent("display").Info().
					Str("key", stopKey).
					Msg("Stop key pressed")
				coord.RequestStop()
				return
			}
		}
	}()
}
