package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/offer-checkout/internal/domain/offer"
	"github.com/xenking/offer-checkout/internal/domain/order"
)

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func encode(fn func(e *jx.Encoder)) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)
	return bytes.Clone(e.Bytes())
}

func encodeOffers(offers []offer.Offer) []byte {
	return encode(func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, o := range offers {
				writeOffer(e, o)
			}
		})
	})
}

func encodeOffer(o offer.Offer) []byte {
	return encode(func(e *jx.Encoder) { writeOffer(e, o) })
}

func writeOffer(e *jx.Encoder, o offer.Offer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID.String()) })
		e.Field("title", func(e *jx.Encoder) { e.Str(o.Title) })
		e.Field("value", func(e *jx.Encoder) { e.Str(o.Value.StringFixed(2)) })
		e.Field("discounted_value", func(e *jx.Encoder) { e.Str(o.DiscountedValue.StringFixed(2)) })
		e.Field("expiration_ts", func(e *jx.Encoder) {
			if o.ExpiresAt == nil {
				e.Null()
				return
			}
			e.Str(o.ExpiresAt.UTC().Format(time.RFC3339))
		})
		e.Field("rank", func(e *jx.Encoder) {
			if o.Rank == nil {
				e.Null()
				return
			}
			e.Int(*o.Rank)
		})
		e.Field("organization", func(e *jx.Encoder) {
			if o.OrganizationID == nil {
				e.Null()
				return
			}
			e.Str(o.OrganizationID.String())
		})
	})
}

func encodeOrder(res *order.PlaceOrderResult) []byte {
	return encode(func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(res.Order.ID.String()) })
			e.Field("customer", func(e *jx.Encoder) {
				c := res.Customer
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(c.ID.String()) })
					e.Field("first_name", func(e *jx.Encoder) { e.Str(c.FirstName) })
					e.Field("last_name", func(e *jx.Encoder) { e.Str(c.LastName) })
					e.Field("email", func(e *jx.Encoder) { e.Str(c.Email) })
					e.Field("phone_number", func(e *jx.Encoder) { e.Str(c.PhoneNumber) })
				})
			})
			e.Field("offer", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(res.Order.OfferID.String()) })
				})
			})
			e.Field("quantity", func(e *jx.Encoder) { e.Int(res.Order.Quantity) })
			e.Field("created_ts", func(e *jx.Encoder) {
				e.Str(res.Order.CreatedAt.UTC().Format(time.RFC3339Nano))
			})
			e.Field("vouchers", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, v := range res.Order.Vouchers {
						e.Obj(func(e *jx.Encoder) {
							e.Field("id", func(e *jx.Encoder) { e.Str(v.ID.String()) })
							e.Field("coupon_code", func(e *jx.Encoder) { e.Str(v.Code) })
						})
					}
				})
			})
		})
	})
}

func encodeClientToken(token string) []byte {
	return encode(func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("token", func(e *jx.Encoder) { e.Str(token) })
		})
	})
}

// decodePlaceOrder reads
// {customer:{first_name,last_name,email,phone_number}, offer:{id}, quantity, sale:{payment_method_nonce}}.
// Unknown fields are ignored; absent fields are left for validation.
func decodePlaceOrder(data []byte) (order.PlaceOrderRequest, error) {
	var req order.PlaceOrderRequest
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return req, errors.New("request body must be a JSON object")
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customer":
			return optObj(d, func(d *jx.Decoder, key string) error {
				c := &req.Customer
				switch key {
				case "first_name":
					return optStr(d, &c.FirstName)
				case "last_name":
					return optStr(d, &c.LastName)
				case "email":
					return optStr(d, &c.Email)
				case "phone_number":
					return optStr(d, &c.PhoneNumber)
				default:
					return d.Skip()
				}
			})
		case "offer":
			return optObj(d, func(d *jx.Decoder, key string) error {
				if key != "id" {
					return d.Skip()
				}
				return optStr(d, &req.OfferID)
			})
		case "quantity":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			req.Quantity = v
			return nil
		case "sale":
			return optObj(d, func(d *jx.Decoder, key string) error {
				if key != "payment_method_nonce" {
					return d.Skip()
				}
				return optStr(d, &req.PaymentMethodNonce)
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return order.PlaceOrderRequest{}, err
	}
	if d.Next() != jx.Invalid {
		return order.PlaceOrderRequest{}, errors.New("unexpected data after request object")
	}
	return req, nil
}

func optObj(d *jx.Decoder, fn func(d *jx.Decoder, key string) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Obj(fn)
}

func optStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
