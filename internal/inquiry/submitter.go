package inquiry

import (
	"context"
	"fmt"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

//go:generate mockgen -source=submitter.go -destination=mock_inquiry_test.go -package=inquiry

// Submitter sends one inquiry and returns its request identifier.
type Submitter interface {
	Submit(ctx context.Context, rc model.RunContext, baseID string) (RequestID, error)
}

// Poller waits for the records of one inquiry.
type Poller interface {
	Poll(ctx context.Context, id RequestID) ([]ResultItem, error)
}

// QuoteSubmitter implements Submitter over the creation endpoint. It never retries.
type QuoteSubmitter struct {
	client *Client
}

func NewSubmitter(client *Client) *QuoteSubmitter {
	return &QuoteSubmitter{client: client}
}

// BuildCreateRequest assembles the creation body for one instrument in the given run context.
func BuildCreateRequest(rc model.RunContext, baseID string) *CreateRequest {
	return &CreateRequest{
		StockCode:  baseID,
		Type:       rc.ProductType,
		Scale:      rc.Scale,
		Deadline:   rc.Term.Code,
		Structures: rc.Layout.StructureCodes(),
		Vendors:    rc.Layout.Vendors(),
	}
}

// Submit posts the inquiry. Success requires code 0 and a non-null data field.
func (s *QuoteSubmitter) Submit(ctx context.Context, rc model.RunContext, baseID string) (RequestID, error) {
	resp, err := s.client.Create(ctx, BuildCreateRequest(rc, baseID))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: create: %v", ErrTransport, err)
	}
	if resp.Code == nil {
		return "", fmt.Errorf("%w: create: response has no code", ErrTransport)
	}
	if *resp.Code != 0 {
		return "", &RejectedError{Op: opCreate, Code: *resp.Code, Msg: resp.Msg}
	}
	if resp.Data == "" {
		return "", ErrNoIdentifier
	}
	return resp.Data, nil
}
