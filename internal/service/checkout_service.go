package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/repository"
	"github.com/google/uuid"
)

// CheckoutService turns won auctions into orders awaiting payment. It is the
// WonSink the bidding engine publishes to.
type CheckoutService struct {
	orderRepo *repository.OrderRepository
	logger    *slog.Logger
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(orderRepo *repository.OrderRepository, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{orderRepo: orderRepo, logger: logger}
}

var _ WonSink = (*CheckoutService)(nil)

// AuctionWon creates the pending order for a sale.
func (s *CheckoutService) AuctionWon(ctx context.Context, fact *domain.WonFact) error {
	now := time.Now().UTC()
	auctionID := fact.AuctionID
	order := &domain.Order{
		ID:        uuid.New(),
		AuctionID: &auctionID,
		BuyerID:   fact.WinnerID,
		SellerID:  fact.SellerID,
		Amount:    fact.FinalPrice,
		Status:    domain.OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.Error("order creation for won auction failed",
			"auction_id", fact.AuctionID,
			"winner_id", fact.WinnerID,
			"final_price", fact.FinalPrice.StringFixed(2),
			"err", err)
		return fmt.Errorf("checkout_service.AuctionWon: %w", err)
	}

	s.logger.Info("order created for won auction",
		"order_id", order.ID,
		"auction_id", fact.AuctionID,
		"final_price", fact.FinalPrice.StringFixed(2))
	return nil
}

// GetOrder returns a single order if the caller is its buyer or seller.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("checkout_service.GetOrder: %w", err)
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

// GetMyOrders returns paginated orders for a buyer.
func (s *CheckoutService) GetMyOrders(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	orders, err := s.orderRepo.GetByBuyer(ctx, buyerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("checkout_service.GetMyOrders: %w", err)
	}
	return orders, nil
}
