package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookstore/internal/notifier"
	"bookstore/internal/repositories"

	"github.com/rs/zerolog"
)

// OrderStatus is the business outcome of an order.
type OrderStatus string

const (
	OrderPlaced     OrderStatus = "placed"
	OrderOutOfStock OrderStatus = "out_of_stock"
)

// OrderResult describes a processed order.
type OrderResult struct {
	ProductID int64       `json:"product_id"`
	Status    OrderStatus `json:"status"`
}

const defaultAlertTimeout = 5 * time.Second

// OrderAlert is the fixed notification sent for every placed order.
type OrderAlert struct {
	To      string
	Subject string
	Timeout time.Duration
	Async   bool
}

// OrderService places orders: one atomic stock decrement followed by an
// order alert whose outcome never affects the order.
type OrderService struct {
	productRepo repositories.ProductRepository
	notifier    notifier.Notifier
	alert       OrderAlert
	log         zerolog.Logger
	inflight    sync.WaitGroup
}

// NewOrderService creates a new OrderService.
func NewOrderService(productRepo repositories.ProductRepository, n notifier.Notifier, alert OrderAlert, log zerolog.Logger) *OrderService {
	if alert.Timeout <= 0 {
		alert.Timeout = defaultAlertTimeout
	}
	return &OrderService{
		productRepo: productRepo,
		notifier:    n,
		alert:       alert,
		log:         log,
	}
}

// PlaceOrder takes one unit of stock for the product named by rawProductID.
// Invalid ids fail with models.ErrValidation before storage is touched;
// storage faults fail with models.ErrStorage. Missing products and empty
// stock are reported as OrderOutOfStock, not as errors.
func (s *OrderService) PlaceOrder(ctx context.Context, rawProductID string) (OrderResult, error) {
	id, err := ParseProductID(rawProductID)
	if err != nil {
		return OrderResult{}, err
	}

	res, err := s.productRepo.DecrementIfAvailable(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Int64("product_id", id).Msg("order failed")
		return OrderResult{}, err
	}
	if res == repositories.NotAvailable {
		s.log.Info().Int64("product_id", id).Msg("order rejected: out of stock")
		return OrderResult{ProductID: id, Status: OrderOutOfStock}, nil
	}

	s.log.Info().Int64("product_id", id).Msg("order placed")
	s.dispatchAlert(id)
	return OrderResult{ProductID: id, Status: OrderPlaced}, nil
}

// Wait blocks until every in-flight order alert has finished.
func (s *OrderService) Wait() {
	s.inflight.Wait()
}

func (s *OrderService) dispatchAlert(productID int64) {
	if s.notifier == nil {
		return
	}
	if !s.alert.Async {
		s.sendAlert(productID)
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.sendAlert(productID)
	}()
}

// sendAlert runs detached from the request context so a finished response
// does not cancel the mail; the timeout bounds it instead.
func (s *OrderService) sendAlert(productID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.alert.Timeout)
	defer cancel()

	body := fmt.Sprintf("Product ID %d was ordered. Stock reduced.", productID)
	if err := s.notifier.Send(ctx, s.alert.To, s.alert.Subject, body); err != nil {
		s.log.Warn().Err(err).Int64("product_id", productID).Str("to", s.alert.To).Msg("order alert not sent")
		return
	}
	s.log.Info().Int64("product_id", productID).Str("to", s.alert.To).Msg("order alert sent")
}
