// Package vest is the exchange adapter for the Vest perpetuals API. It
// implements domain.OrderGateway over the REST and WebSocket endpoints.
package vest

import (
	"fmt"
	"math/big"
	"strings"
)

// The API represents every price and size as an integer scaled by 1e18,
// serialized as a decimal string. Floats only exist on our side of the
// boundary; the conversion happens exactly once, here.

var x18Scale = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// toX18 converts a float to the API's 1e18 fixed-point decimal string.
func toX18(v float64) string {
	f := new(big.Float).SetPrec(128).SetFloat64(v)
	f.Mul(f, x18Scale)
	i, _ := f.Int(nil)
	return i.String()
}

// fromX18 parses a 1e18 fixed-point decimal string into a float.
func fromX18(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("vest: empty x18 value")
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("vest: invalid x18 value %q", s)
	}
	f := new(big.Float).SetPrec(128).SetInt(i)
	f.Quo(f, x18Scale)
	out, _ := f.Float64()
	return out, nil
}
