package notification

// Composer turns confirmations into templated messages.
type Composer struct {
	template string
	useDraft bool
}

// NewComposer returns a Composer for the given template. An empty template
// name falls back to DefaultTemplate.
func NewComposer(template string, useDraft bool) *Composer {
	if template == "" {
		template = DefaultTemplate
	}
	return &Composer{template: template, useDraft: useDraft}
}

// Compose builds the message for c.
func (c *Composer) Compose(conf Confirmation) Message {
	return Message{
		Recipients:       []string{conf.Email},
		Template:         c.template,
		UseDraftTemplate: c.useDraft,
		SubstitutionData: NewSubstitutionData(conf),
	}
}

// NewSubstitutionData extracts template variables from a confirmation.
func NewSubstitutionData(conf Confirmation) SubstitutionData {
	codes := make([]string, len(conf.Vouchers))
	for i, v := range conf.Vouchers {
		codes[i] = v.Code
	}

	var orgName string
	if conf.Organization != nil {
		orgName = conf.Organization.Name
	}

	card := conf.Transaction.CreditCard
	return SubstitutionData{
		CardType:             card.CardType,
		CardholderName:       card.CardholderName,
		CardNumber:           MaskCardNumber(card.Last4),
		OfferTitle:           conf.Offer.Title,
		OfferValue:           conf.Offer.Value.StringFixed(2),
		OfferDiscountedValue: conf.Offer.DiscountedValue.StringFixed(2),
		OrganizationName:     orgName,
		CouponCodes:          codes,
	}
}

// MaskCardNumber renders the last four digits behind masked groups.
func MaskCardNumber(last4 string) string {
	if last4 == "" {
		return ""
	}
	return "**** **** **** " + last4
}
