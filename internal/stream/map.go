package stream

import "context"

// Map derives a stream from in. fn converts each value; returning false ends
// the derived stream. The output keeps only the latest unread value, like a
// State subscription, and is closed when in closes, fn declines or ctx is done.
func Map[A, B any](ctx context.Context, in <-chan A, fn func(A) (B, bool)) <-chan B {
	out := make(chan B, 1)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case a, ok := <-in:
				if !ok {
					return
				}
				b, keep := fn(a)
				if !keep {
					return
				}
				// Only this goroutine sends, so after the drain there is room.
				select {
				case <-out:
				default:
				}
				out <- b
			}
		}
	}()

	return out
}
