package price

import (
	"encoding/json"
)

// Size is a share quantity scaled by PriceScale, parsed the same way as
// Price so book levels and trade prints keep full precision.
type Size int64

var _ json.Unmarshaler = (*Size)(nil)

func (s *Size) UnmarshalJSON(data []byte) error {
	var p Price
	if err := p.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = Size(p)
	return nil
}

func (s Size) Float64() float64 {
	return float64(s) / float64(PriceScale)
}
