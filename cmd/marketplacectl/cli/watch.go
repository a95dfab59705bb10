package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sourcing-hub/marketplace/internal/listing"
	"github.com/sourcing-hub/marketplace/internal/upstream"
)

// watchList polls view every interval and writes its output whenever it
// changes. Poll results pass through a debouncer with half the interval as
// quiet period, so polls that bunch up after a slow upstream render once.
// It returns nil when ctx is done or after maxPolls polls (0 means no
// limit). Retryable poll failures are reported on errOut and polling
// continues; any other failure ends the watch.
func watchList(ctx context.Context, out, errOut io.Writer, every time.Duration, maxPolls int, view func(context.Context) (string, error)) error {
	renders := make(chan string, 1)
	d := listing.NewDebouncer(every/2, func(v string) {
		select {
		case <-renders:
		default:
		}
		select {
		case renders <- v:
		default:
		}
	})
	defer d.Stop()

	var last string
	show := func(v string) error {
		if v == last {
			return nil
		}
		last = v
		_, err := io.WriteString(out, v)
		return err
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for polls := 1; ; polls++ {
		v, err := view(ctx)
		final := maxPolls > 0 && polls >= maxPolls
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil && !upstream.IsRetryable(err):
			return err
		case err != nil:
			fmt.Fprintf(errOut, "poll %d failed: %v\n", polls, err)
		case final:
			d.Stop()
			return show(v)
		default:
			d.Push(v)
		}
		if final {
			return nil
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return nil
			case v := <-renders:
				if err := show(v); err != nil {
					return err
				}
			case <-ticker.C:
				break wait
			}
		}
	}
}
