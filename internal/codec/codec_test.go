package codec

import (
	"encoding/hex"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/roach88/instrumentd/internal/ir"
)

func engagedLoan() ir.IssuanceProperties {
	return ir.IssuanceProperties{
		IssuanceID:      1,
		Maker:           "maker",
		Taker:           "taker",
		EngagementDueAt: 1000 + 14*ir.Day,
		IssuanceDueAt:   2000 + 20*ir.Day,
		CreatedAt:       1000,
		EngagedAt:       2000,
		EscrowID:        "instrument/1/issuance/1",
		State:           ir.StateEngaged,
		LineItems: []ir.LineItem{{
			ID:      1,
			Type:    ir.LineItemTransfer,
			State:   ir.LineItemStateEngaged,
			Obligor: "taker",
			Claimor: "maker",
			Asset:   "USDC",
			Amount:  24000,
			DueAt:   2000 + 20*ir.Day,
		}},
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestEncodeIssuancePropertiesGolden(t *testing.T) {
	data := EncodeIssuanceProperties(engagedLoan())
	newGoldie(t).Assert(t, "issuance_properties", []byte(hex.EncodeToString(data)))
}

func TestEncodeCompletePropertiesGolden(t *testing.T) {
	data := EncodeCompleteProperties(CompleteProperties{
		Issuance: engagedLoan(),
		Properties: []Property{
			{Key: "lending_asset", Value: "USDC"},
			{Key: "interest_amount", Value: "4000"},
		},
	})
	newGoldie(t).Assert(t, "complete_properties", []byte(hex.EncodeToString(data)))
}

func TestDecodePreservesRecord(t *testing.T) {
	want := engagedLoan()
	got, err := DecodeIssuanceProperties(EncodeIssuanceProperties(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	complete := CompleteProperties{Issuance: want, Properties: []Property{{Key: "swap_data", Value: ""}}}
	decoded, err := DecodeCompleteProperties(EncodeCompleteProperties(complete))
	require.NoError(t, err)
	assert.Equal(t, complete, decoded)
}

func TestDecodeEmptyRecord(t *testing.T) {
	got, err := DecodeIssuanceProperties(nil)
	require.NoError(t, err)
	assert.Equal(t, ir.IssuanceProperties{LineItems: []ir.LineItem{}}, got)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	data := EncodeIssuanceProperties(ir.IssuanceProperties{IssuanceID: 4, State: ir.StateCancelled})
	data = protowire.AppendTag(data, 99, protowire.Fixed64Type)
	data = protowire.AppendFixed64(data, 7)
	data = protowire.AppendTag(data, 98, protowire.BytesType)
	data = protowire.AppendString(data, "ignored")

	got, err := DecodeIssuanceProperties(data)
	require.NoError(t, err)
	assert.Equal(t, ir.IssuanceID(4), got.IssuanceID)
	assert.Equal(t, ir.StateCancelled, got.State)
}

func TestDecodeTruncated(t *testing.T) {
	data := EncodeIssuanceProperties(engagedLoan())
	_, err := DecodeIssuanceProperties(data[:len(data)-3])
	require.Error(t, err)
}

func TestFieldsIssuanceData(t *testing.T) {
	fields, err := Fields(KeyIssuanceData, EncodeIssuanceProperties(engagedLoan()))
	require.NoError(t, err)
	assert.Equal(t, "1", fields["issuance_id"])
	assert.Equal(t, "taker", fields["taker"])
	assert.Equal(t, ir.StateEngaged.String(), fields["state"])
	assert.Equal(t, "1", fields["line_items"])
}

func TestFieldsMergesVariantProperties(t *testing.T) {
	data := EncodeCompleteProperties(CompleteProperties{
		Issuance:   engagedLoan(),
		Properties: []Property{{Key: "interest_amount", Value: "4000"}},
	})
	fields, err := Fields("lending_data", data)
	require.NoError(t, err)
	assert.Equal(t, "4000", fields["interest_amount"])
	assert.Equal(t, "maker", fields["maker"])
}
