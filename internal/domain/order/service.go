package order

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/offer-checkout/internal/domain/customer"
	"github.com/xenking/offer-checkout/internal/domain/notification"
	"github.com/xenking/offer-checkout/internal/domain/offer"
	"github.com/xenking/offer-checkout/internal/domain/payment"
	"github.com/xenking/offer-checkout/internal/domain/voucher"
)

const instrumentationName = "github.com/xenking/offer-checkout/internal/domain/order"

// Config tunes the order service.
type Config struct {
	// PersistAttempts is how many times a charged order write is attempted
	// before giving up.
	PersistAttempts        uint64
	PersistInitialInterval time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service orchestrates checkout: offer lookup, customer resolution, payment,
// persistence and confirmation, strictly in that order.
type Service struct {
	offers    OfferSource
	customers CustomerResolver
	gateway   payment.Gateway
	orders    Repository
	codes     voucher.Generator
	notifier  Notifier

	validate *validator.Validate
	cfg      Config
	now      func() time.Time

	tracer   trace.Tracer
	placed   metric.Int64Counter
	declined metric.Int64Counter
	failed   metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	offers OfferSource,
	customers CustomerResolver,
	gateway payment.Gateway,
	orders Repository,
	codes voucher.Generator,
	notifier Notifier,
	cfg Config,
) (*Service, error) {
	if cfg.PersistAttempts == 0 {
		cfg.PersistAttempts = 5
	}
	if cfg.PersistInitialInterval <= 0 {
		cfg.PersistInitialInterval = 100 * time.Millisecond
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}

	s := &Service{
		offers:    offers,
		customers: customers,
		gateway:   gateway,
		orders:    orders,
		codes:     codes,
		notifier:  notifier,
		validate:  newValidator(),
		cfg:       cfg,
		now:       time.Now,
		tracer:    cfg.TracerProvider.Tracer(instrumentationName),
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	var err error
	if s.placed, err = meter.Int64Counter("checkout.orders.placed",
		metric.WithDescription("Orders charged and recorded"),
	); err != nil {
		return nil, errors.Wrap(err, "placed counter")
	}
	if s.declined, err = meter.Int64Counter("checkout.orders.declined",
		metric.WithDescription("Orders declined by the payment processor"),
	); err != nil {
		return nil, errors.Wrap(err, "declined counter")
	}
	if s.failed, err = meter.Int64Counter("checkout.orders.failed",
		metric.WithDescription("Orders that failed at the gateway or during persistence"),
	); err != nil {
		return nil, errors.Wrap(err, "failed counter")
	}
	return s, nil
}

// PlaceOrder validates the request, resolves the offer and customer, charges
// the payment method and, only when the charge succeeds, records the order
// with one voucher per unit and queues the confirmation email.
//
// A decline is returned as *DeclinedError and leaves no order or voucher
// behind. The customer record created along the way is kept.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *PlaceOrderResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	req.Customer.Email = customer.NormalizeEmail(req.Customer.Email)
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	offerID, err := uuid.Parse(req.OfferID)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"offer_id": "must be a valid UUID"}}
	}
	span.SetAttributes(
		attribute.String("offer.id", offerID.String()),
		attribute.Int("order.quantity", req.Quantity),
	)

	o, err := s.offers.Orderable(ctx, offerID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve offer")
	}

	cust, err := s.customers.Resolve(ctx, req.Customer)
	if err != nil {
		return nil, errors.Wrap(err, "resolve customer")
	}

	ctx = zctx.With(ctx,
		zap.Stringer("offer_id", o.ID),
		zap.Stringer("customer_id", cust.ID),
	)
	lg := zctx.From(ctx)

	amount := o.DiscountedValue.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
	res, err := s.gateway.Sale(ctx, payment.SaleRequest{
		Amount:              amount,
		PaymentMethodNonce:  req.PaymentMethodNonce,
		SubmitForSettlement: true,
	})
	if err != nil {
		s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "gateway")))
		lg.Warn("Payment gateway call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	switch res.Outcome {
	case payment.OutcomeSuccess:
	case payment.OutcomeDeclined:
		s.declined.Add(ctx, 1)
		lg.Info("Payment declined", zap.String("message", res.Message))
		return nil, &DeclinedError{Message: res.Message}
	default:
		s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "gateway")))
		return nil, errors.Wrapf(ErrGatewayUnavailable, "unexpected outcome %s", res.Outcome)
	}

	var txn payment.Transaction
	if res.Transaction != nil {
		txn = *res.Transaction
	}

	ord := &Order{
		ID:            uuid.New(),
		CustomerID:    cust.ID,
		OfferID:       o.ID,
		Quantity:      req.Quantity,
		TransactionID: txn.ID,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.persist(ctx, ord); err != nil {
		s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "persist")))
		// The charge is captured at this point; the log line is the record
		// operators reconcile from.
		lg.Error("Charged order not recorded",
			zap.Error(err),
			zap.String("transaction_id", txn.ID),
			zap.Stringer("order_id", ord.ID),
			zap.String("amount", amount.StringFixed(2)),
			zap.Int("quantity", ord.Quantity),
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistOrder, err)
	}
	s.placed.Add(ctx, 1)
	lg.Info("Order placed",
		zap.Stringer("order_id", ord.ID),
		zap.String("transaction_id", txn.ID),
		zap.Int("vouchers", len(ord.Vouchers)),
	)

	s.notifier.Notify(ctx, notification.Confirmation{
		Email:        cust.Email,
		Transaction:  txn,
		Offer:        *o,
		Organization: s.organization(ctx, o),
		Vouchers:     ord.Vouchers,
	})

	return &PlaceOrderResult{
		Order:       ord,
		Customer:    cust,
		Offer:       o,
		Transaction: txn,
	}, nil
}

// persist writes the order and its vouchers, retrying with backoff. The write
// runs detached from request cancellation because the customer has already
// been charged. Retries reuse ord.ID, so an attempt that committed before its
// error reached us resolves to the stored vouchers.
func (s *Service) persist(ctx context.Context, ord *Order) error {
	writeCtx := context.WithoutCancel(ctx)
	lg := zctx.From(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.PersistInitialInterval
	b.MaxElapsedTime = 0

	op := func() error {
		ord.Vouchers = nil
		return s.orders.CreateWithVouchers(writeCtx, ord, s.codes)
	}
	notify := func(err error, wait time.Duration) {
		lg.Warn("Order write failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}
	return backoff.RetryNotify(op, backoff.WithMaxRetries(b, s.cfg.PersistAttempts-1), notify)
}

// organization looks up the offer's owner for the confirmation email. A
// failed lookup only degrades the email.
func (s *Service) organization(ctx context.Context, o *offer.Offer) *offer.Organization {
	if o.OrganizationID == nil {
		return nil
	}
	org, err := s.offers.Organization(ctx, *o.OrganizationID)
	if err != nil {
		zctx.From(ctx).Warn("Organization lookup failed", zap.Error(err))
		return nil
	}
	return org
}
