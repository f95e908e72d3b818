package workspace

import (
	"context"
	"sync"
)

// DocumentError pairs a failed document path with its error. Failures are
// isolated: one document's error never aborts its siblings.
type DocumentError struct {
	Path string
	Err  error
}

func (e DocumentError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e DocumentError) Unwrap() error { return e.Err }

// pathLocks serializes operations against the same document path. Language
// documents are independent and may be processed concurrently, but each path
// is a single-writer resource: an operation must fully complete, including
// persistence, before the next one against that path starts.
var pathLocks sync.Map // path -> *sync.Mutex

func lockPath(path string) func() {
	v, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ForEachDocument runs fn over the given paths with at most maxConcurrent in
// flight, holding the per-path lock for the duration of each call. It
// returns all per-document failures; a nil slice means every document
// succeeded.
func ForEachDocument(ctx context.Context, paths []string, maxConcurrent int, fn func(ctx context.Context, path string) error) []DocumentError {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []DocumentError

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)

		go func(p string) {
			defer func() {
				<-sem
				wg.Done()
			}()
			unlock := lockPath(p)
			defer unlock()

			if err := fn(ctx, p); err != nil {
				mu.Lock()
				failures = append(failures, DocumentError{Path: p, Err: err})
				mu.Unlock()
			}
		}(path)
	}

	wg.Wait()
	return failures
}
