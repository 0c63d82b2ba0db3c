// Package contentStore fetches and publishes the off-ledger task documents
// that a task's ContentRef points to.
package contentStore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/ipfs/go-cid"
)

var (
	ErrContentUnavailable = errors.New("content store unavailable")
	ErrInvalidRef         = errors.New("invalid content reference")
)

type IContentStore interface {
	Get(ctx context.Context, ref string) (*types.ContentDocument, error)
	Put(ctx context.Context, doc *types.ContentDocument) (string, error)
}

// ValidateRef checks that ref parses as a CID (v0 or v1) and returns its canonical string form.
func ValidateRef(ref string) (string, error) {
	c, err := cid.Decode(ref)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidRef, ref, err)
	}
	return c.String(), nil
}

type noopStore struct{}

// NewNoopStore returns a store for sessions without a content backend.
func NewNoopStore() IContentStore {
	return noopStore{}
}

func (noopStore) Get(ctx context.Context, ref string) (*types.ContentDocument, error) {
	return nil, ErrContentUnavailable
}

func (noopStore) Put(ctx context.Context, doc *types.ContentDocument) (string, error) {
	return "", ErrContentUnavailable
}
