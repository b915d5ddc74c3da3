package fortune

import (
	"context"
	"fmt"

	"github.com/seer-points/seer_points/internal/ledger"
)

// Default draw prices in points, keyed by category.
var defaultPrices = map[string]int64{
	"poem":      80,
	"tarot":     120,
	"astrology": 150,
}

// ErrUnknownCategory indicates the requested draw category has no price.
type ErrUnknownCategory struct {
	Category string
}

func (e *ErrUnknownCategory) Error() string {
	return fmt.Sprintf("unknown fortune category %q", e.Category)
}

// Service sells fortune draws: each draw spends points through the ledger,
// which creates the processing job as part of the same unit of work.
type Service struct {
	ledger *ledger.Service
	interp Interpreter
	prices map[string]int64
}

// NewService builds a fortune service. A nil interpreter defaults to the
// static stub.
func NewService(ledgerSvc *ledger.Service, interp Interpreter) *Service {
	if interp == nil {
		interp = StaticInterpreter{}
	}
	return &Service{ledger: ledgerSvc, interp: interp, prices: defaultPrices}
}

// DrawInput captures a paid fortune request.
type DrawInput struct {
	UserID   string
	Category string
	Question string
}

// DrawResult is the outcome of a paid draw.
type DrawResult struct {
	Transaction ledger.Transaction
	Job         ledger.Job
	Reading     Reading
}

// Price returns the point cost for a category.
func (s *Service) Price(category string) (int64, error) {
	price, ok := s.prices[category]
	if !ok {
		return 0, &ErrUnknownCategory{Category: category}
	}
	return price, nil
}

// Draw charges the user's wallet and returns the created job plus a
// provisional reading. No points move when the category is unknown or the
// balance is insufficient.
func (s *Service) Draw(ctx context.Context, in DrawInput) (DrawResult, error) {
	price, err := s.Price(in.Category)
	if err != nil {
		return DrawResult{}, err
	}

	txn, job, err := s.ledger.Spend(ctx, ledger.SpendInput{
		UserID:      in.UserID,
		Amount:      price,
		JobType:     "fortune:" + in.Category,
		Description: fmt.Sprintf("fortune draw (%s)", in.Category),
	})
	if err != nil {
		return DrawResult{}, err
	}

	reading, err := s.interp.Interpret(ctx, in.Category, in.Question)
	if err != nil {
		// The spend stands; the job will be processed asynchronously.
		return DrawResult{Transaction: txn, Job: job}, nil
	}
	return DrawResult{Transaction: txn, Job: job, Reading: reading}, nil
}
