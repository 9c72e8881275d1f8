package notification

import (
	"context"

	"github.com/xenking/offer-checkout/internal/domain/offer"
	"github.com/xenking/offer-checkout/internal/domain/payment"
	"github.com/xenking/offer-checkout/internal/domain/voucher"
)

// DefaultTemplate is the confirmation email template name.
const DefaultTemplate = "order-confirmation"

// Confirmation carries everything needed to tell a customer their order went through.
type Confirmation struct {
	Email       string
	Transaction payment.Transaction
	Offer       offer.Offer
	// Organization is nil when the offer has no owning organization.
	Organization *offer.Organization
	Vouchers     []voucher.Voucher
}

// SubstitutionData is the variable set rendered into the email template.
type SubstitutionData struct {
	CardType             string
	CardholderName       string
	CardNumber           string
	OfferTitle           string
	OfferValue           string
	OfferDiscountedValue string
	OrganizationName     string
	CouponCodes          []string
}

// Message is a templated email transmission request.
type Message struct {
	Recipients       []string
	Template         string
	UseDraftTemplate bool
	SubstitutionData SubstitutionData
}

// Mailer sends a templated message. Implementations talk to the delivery service.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
