package codec

import (
	"strconv"

	"github.com/roach88/instrumentd/internal/ir"
)

// Fields decodes custom data stored under key into a flat map of strings.
// issuance_data decodes as IssuanceProperties; every other key decodes as
// CompleteProperties, whose variant properties are merged over the
// issuance fields. Line items are summarized by count.
func Fields(key string, data []byte) (map[string]string, error) {
	if key == KeyIssuanceData {
		p, err := DecodeIssuanceProperties(data)
		if err != nil {
			return nil, err
		}
		return issuanceFields(p), nil
	}

	c, err := DecodeCompleteProperties(data)
	if err != nil {
		return nil, err
	}
	out := issuanceFields(c.Issuance)
	for _, prop := range c.Properties {
		out[prop.Key] = prop.Value
	}
	return out, nil
}

func issuanceFields(p ir.IssuanceProperties) map[string]string {
	out := map[string]string{
		"issuance_id":       strconv.FormatInt(int64(p.IssuanceID), 10),
		"maker":             string(p.Maker),
		"taker":             string(p.Taker),
		"engagement_due_at": strconv.FormatInt(int64(p.EngagementDueAt), 10),
		"issuance_due_at":   strconv.FormatInt(int64(p.IssuanceDueAt), 10),
		"created_at":        strconv.FormatInt(int64(p.CreatedAt), 10),
		"engaged_at":        strconv.FormatInt(int64(p.EngagedAt), 10),
		"settled_at":        strconv.FormatInt(int64(p.SettledAt), 10),
		"escrow_id":         string(p.EscrowID),
		"state":             p.State.String(),
		"line_items":        strconv.Itoa(len(p.LineItems)),
	}
	return out
}
