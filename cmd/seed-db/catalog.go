package main

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/offer-checkout/internal/domain/offer"
)

type seedCatalog struct {
	Organizations []offer.Organization
	Offers        []offer.Offer
}

// parseCatalog reads the seed document:
//
//	{"organizations": [{id, name, description}],
//	 "offers": [{id, title, value, discounted_value, rank?, expiration_ts?, organization_id?}]}
func parseCatalog(data []byte) (*seedCatalog, error) {
	var c seedCatalog
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "organizations":
			return d.Arr(func(d *jx.Decoder) error {
				org, err := decodeOrganization(d)
				if err != nil {
					return errors.Wrapf(err, "organization %d", len(c.Organizations))
				}
				c.Organizations = append(c.Organizations, org)
				return nil
			})
		case "offers":
			return d.Arr(func(d *jx.Decoder) error {
				o, err := decodeOffer(d)
				if err != nil {
					return errors.Wrapf(err, "offer %d", len(c.Offers))
				}
				c.Offers = append(c.Offers, o)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}

	known := make(map[uuid.UUID]struct{}, len(c.Organizations))
	for _, org := range c.Organizations {
		known[org.ID] = struct{}{}
	}
	for _, o := range c.Offers {
		if o.OrganizationID == nil {
			continue
		}
		if _, ok := known[*o.OrganizationID]; !ok {
			return nil, errors.Errorf("offer %s references unknown organization %s", o.ID, o.OrganizationID)
		}
	}
	return &c, nil
}

func decodeOrganization(d *jx.Decoder) (offer.Organization, error) {
	var org offer.Organization
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			id, err := decodeUUID(d)
			org.ID = id
			return err
		case "name":
			s, err := d.Str()
			org.Name = s
			return err
		case "description":
			s, err := d.Str()
			org.Description = s
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return org, err
	}
	if org.ID == uuid.Nil || org.Name == "" {
		return org, errors.New("id and name are required")
	}
	return org, nil
}

func decodeOffer(d *jx.Decoder) (offer.Offer, error) {
	var o offer.Offer
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		switch key {
		case "id":
			id, err := decodeUUID(d)
			o.ID = id
			return err
		case "title":
			s, err := d.Str()
			o.Title = s
			return err
		case "value":
			v, err := decodeDecimal(d)
			o.Value = v
			return err
		case "discounted_value":
			v, err := decodeDecimal(d)
			o.DiscountedValue = v
			return err
		case "rank":
			n, err := d.Int()
			o.Rank = &n
			return err
		case "expiration_ts":
			s, err := d.Str()
			if err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return errors.Wrap(err, "expiration_ts")
			}
			o.ExpiresAt = &ts
			return nil
		case "organization_id":
			id, err := decodeUUID(d)
			o.OrganizationID = &id
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return o, err
	}
	if o.ID == uuid.Nil || o.Title == "" {
		return o, errors.New("id and title are required")
	}
	return o, nil
}

func decodeUUID(d *jx.Decoder) (uuid.UUID, error) {
	s, err := d.Str()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(s)
}

// decodeDecimal accepts both "20.00" strings and bare numbers.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}
