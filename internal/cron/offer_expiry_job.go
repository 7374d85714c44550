package cron

import (
	"context"
	"fmt"
)

const offerExpiryBatchSize = 200

// OfferExpiryJobParams configure the offer expiry sweep.
type OfferExpiryJobParams struct {
	Orders    orderExpirer
	BatchSize int
}

type orderExpirer interface {
	ExpirePastDue(ctx context.Context, batchSize int) (int, error)
}

// NewOfferExpiryJob builds the job that expires payable orders whose
// expiry timestamp has passed.
func NewOfferExpiryJob(params OfferExpiryJobParams) (Job, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = offerExpiryBatchSize
	}
	return &offerExpiryJob{
		orders:    params.Orders,
		batchSize: batchSize,
	}, nil
}

type offerExpiryJob struct {
	orders    orderExpirer
	batchSize int
}

func (j *offerExpiryJob) Name() string { return "offer-expiry" }

func (j *offerExpiryJob) Run(ctx context.Context) error {
	if _, err := j.orders.ExpirePastDue(ctx, j.batchSize); err != nil {
		return fmt.Errorf("offer expiry: %w", err)
	}
	return nil
}
