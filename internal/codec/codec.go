// Package codec serializes issuance custom data in the protocol buffer wire
// format without generated code.
//
// Message layouts:
//
//	IssuanceProperties  1 id, 2 maker, 3 taker, 4 engagement_due_at,
//	                    5 issuance_due_at, 6 created_at, 7 engaged_at,
//	                    8 settled_at, 9 escrow_id, 10 state, 11 line_items
//	LineItem            1 id, 2 type, 3 state, 4 obligor, 5 claimor,
//	                    6 asset, 7 amount, 8 due_at
//	CompleteProperties  1 issuance_properties, 2 properties (repeated Property)
//	Property            1 key, 2 value
//
// Integers use varint encoding; zero values and empty strings are omitted.
// Decoders skip unknown fields.
package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/roach88/instrumentd/internal/ir"
)

// Custom data keys.
const (
	KeyIssuanceData = "issuance_data"
)

// Property is one variant-specific key/value field.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CompleteProperties is issuance properties plus the variant's fields.
type CompleteProperties struct {
	Issuance   ir.IssuanceProperties `json:"issuance"`
	Properties []Property            `json:"properties"`
}

// EncodeIssuanceProperties encodes p.
func EncodeIssuanceProperties(p ir.IssuanceProperties) []byte {
	var b []byte
	b = appendInt(b, 1, int64(p.IssuanceID))
	b = appendString(b, 2, string(p.Maker))
	b = appendString(b, 3, string(p.Taker))
	b = appendInt(b, 4, int64(p.EngagementDueAt))
	b = appendInt(b, 5, int64(p.IssuanceDueAt))
	b = appendInt(b, 6, int64(p.CreatedAt))
	b = appendInt(b, 7, int64(p.EngagedAt))
	b = appendInt(b, 8, int64(p.SettledAt))
	b = appendString(b, 9, string(p.EscrowID))
	b = appendInt(b, 10, int64(p.State))
	for _, item := range p.LineItems {
		b = protowire.AppendTag(b, 11, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeLineItem(item))
	}
	return b
}

// EncodeCompleteProperties encodes p.
func EncodeCompleteProperties(p CompleteProperties) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, EncodeIssuanceProperties(p.Issuance))
	for _, prop := range p.Properties {
		var e []byte
		e = appendString(e, 1, prop.Key)
		e = appendString(e, 2, prop.Value)
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	return b
}

func encodeLineItem(item ir.LineItem) []byte {
	var b []byte
	b = appendInt(b, 1, item.ID)
	b = appendInt(b, 2, int64(item.Type))
	b = appendInt(b, 3, int64(item.State))
	b = appendString(b, 4, string(item.Obligor))
	b = appendString(b, 5, string(item.Claimor))
	b = appendString(b, 6, string(item.Asset))
	b = appendInt(b, 7, item.Amount)
	b = appendInt(b, 8, int64(item.DueAt))
	return b
}

// DecodeIssuanceProperties decodes data produced by EncodeIssuanceProperties.
func DecodeIssuanceProperties(data []byte) (ir.IssuanceProperties, error) {
	p := ir.IssuanceProperties{LineItems: []ir.LineItem{}}
	err := walk(data, func(num protowire.Number, v value) error {
		switch num {
		case 1:
			p.IssuanceID = ir.IssuanceID(v.int())
		case 2:
			p.Maker = ir.Address(v.bytes)
		case 3:
			p.Taker = ir.Address(v.bytes)
		case 4:
			p.EngagementDueAt = ir.Timestamp(v.int())
		case 5:
			p.IssuanceDueAt = ir.Timestamp(v.int())
		case 6:
			p.CreatedAt = ir.Timestamp(v.int())
		case 7:
			p.EngagedAt = ir.Timestamp(v.int())
		case 8:
			p.SettledAt = ir.Timestamp(v.int())
		case 9:
			p.EscrowID = ir.EscrowID(v.bytes)
		case 10:
			p.State = ir.IssuanceState(v.int())
		case 11:
			item, err := decodeLineItem(v.bytes)
			if err != nil {
				return fmt.Errorf("line item: %w", err)
			}
			p.LineItems = append(p.LineItems, item)
		}
		return nil
	})
	return p, err
}

// DecodeCompleteProperties decodes data produced by EncodeCompleteProperties.
func DecodeCompleteProperties(data []byte) (CompleteProperties, error) {
	out := CompleteProperties{Properties: []Property{}}
	err := walk(data, func(num protowire.Number, v value) error {
		switch num {
		case 1:
			p, err := DecodeIssuanceProperties(v.bytes)
			if err != nil {
				return err
			}
			out.Issuance = p
		case 2:
			var prop Property
			err := walk(v.bytes, func(n protowire.Number, pv value) error {
				switch n {
				case 1:
					prop.Key = string(pv.bytes)
				case 2:
					prop.Value = string(pv.bytes)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("property: %w", err)
			}
			out.Properties = append(out.Properties, prop)
		}
		return nil
	})
	if err == nil && out.Issuance.LineItems == nil {
		out.Issuance.LineItems = []ir.LineItem{}
	}
	return out, err
}

func decodeLineItem(data []byte) (ir.LineItem, error) {
	var item ir.LineItem
	err := walk(data, func(num protowire.Number, v value) error {
		switch num {
		case 1:
			item.ID = v.int()
		case 2:
			item.Type = ir.LineItemType(v.int())
		case 3:
			item.State = ir.LineItemState(v.int())
		case 4:
			item.Obligor = ir.Address(v.bytes)
		case 5:
			item.Claimor = ir.Address(v.bytes)
		case 6:
			item.Asset = ir.AssetID(v.bytes)
		case 7:
			item.Amount = v.int()
		case 8:
			item.DueAt = ir.Timestamp(v.int())
		}
		return nil
	})
	return item, err
}

// value is one decoded field: varint fields set num, length-delimited
// fields set bytes.
type value struct {
	num   uint64
	bytes []byte
}

func (v value) int() int64 { return int64(v.num) }

// walk calls fn for every varint or length-delimited field in data and skips
// fields of other wire types.
func walk(data []byte, fn func(protowire.Number, value) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		var v value
		switch typ {
		case protowire.VarintType:
			v.num, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
		if err := fn(num, v); err != nil {
			return err
		}
	}
	return nil
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}
