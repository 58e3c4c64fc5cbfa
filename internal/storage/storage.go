// Package storage keeps the normalized invoice images, either inline in the
// invoice row or as objects in S3.
package storage

import (
	"context"
	"errors"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

// ErrNoImage is returned when an invoice has no stored image.
var ErrNoImage = errors.New("invoice has no stored image")

// ImageStore persists invoice images. Put records the location on inv before
// the invoice row is written; Delete undoes a Put whose row was never written.
type ImageStore interface {
	Put(ctx context.Context, inv *domain.Invoice, img []byte, mime string) error
	Get(ctx context.Context, inv *domain.Invoice) ([]byte, string, error)
	Delete(ctx context.Context, inv *domain.Invoice) error
}

// DBImageStore keeps image bytes in the invoice row.
type DBImageStore struct{}

func (DBImageStore) Put(_ context.Context, inv *domain.Invoice, img []byte, mime string) error {
	inv.ImageData, inv.ImageMIME, inv.ImageKey = img, mime, ""
	return nil
}

func (DBImageStore) Get(_ context.Context, inv *domain.Invoice) ([]byte, string, error) {
	if len(inv.ImageData) == 0 {
		return nil, "", ErrNoImage
	}
	return inv.ImageData, inv.ImageMIME, nil
}

func (DBImageStore) Delete(context.Context, *domain.Invoice) error { return nil }
