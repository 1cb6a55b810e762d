package stream

import "context"

// Distinct forwards the values of in, skipping a value equal to the one
// forwarded before it. The output conflates like Map and is closed when in
// closes or ctx is done.
func Distinct[T comparable](ctx context.Context, in <-chan T) <-chan T {
	var (
		last T
		seen bool
	)
	out := make(chan T, 1)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				if seen && v == last {
					continue
				}
				last, seen = v, true
				select {
				case <-out:
				default:
				}
				out <- v
			}
		}
	}()

	return out
}
