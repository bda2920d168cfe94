package transfer

import "context"

// ReadCallback receives the outcome of one asynchronous read.
type ReadCallback func(content string, err error)

// ReadAsync reads handle in the background and calls cb exactly once with the result.
// The returned channel is closed after cb has returned.
// There is no cancellation beyond ctx being checked before the read starts.
func ReadAsync(ctx context.Context, ft FileTransfer, handle string, cb ReadCallback) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		content, err := ft.ReadText(ctx, handle)
		cb(content, err)
	}()
	return done
}
