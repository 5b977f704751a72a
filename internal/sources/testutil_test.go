package sources

import (
	"context"
	"errors"
)

type fakeGetter map[string][]byte

var errUnreachable = errors.New("dial tcp: connection refused")

func (f fakeGetter) Get(_ context.Context, url string) ([]byte, error) {
	b, ok := f[url]
	if !ok {
		return nil, errUnreachable
	}
	return b, nil
}
