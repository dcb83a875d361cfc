// Package polyline decodes and encodes the compact polyline format used by
// the routing service for leg geometry.
//
// Values are interleaved (latitude, longitude) deltas encoded as
// variable-length 5-bit groups offset by 63. The routing service uses six
// digits of precision; the common Google format uses five.
package polyline

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// Precision6 is the scale used by the routing service (1e-6 degrees).
	Precision6 = 6
	// Precision5 is the scale of the common Google polyline format.
	Precision5 = 5

	chunkOffset    = 63
	continuationAt = 0x20
	payloadMask    = 0x1f
	maxShift       = 55
)

// ErrMalformed is returned when the input ends in the middle of a value or
// contains a byte outside the encoding alphabet.
var ErrMalformed = errors.New("malformed polyline")

// Decode decodes a polyline with six digits of precision.
// Points are returned in (longitude, latitude) order.
func Decode(encoded string) (orb.LineString, error) {
	return DecodeWithPrecision(encoded, Precision6)
}

// DecodeWithPrecision decodes a polyline whose values carry the given number
// of decimal digits. Each output value is rounded to that many digits.
func DecodeWithPrecision(encoded string, precision int) (orb.LineString, error) {
	if precision < 0 || precision > 9 {
		return nil, fmt.Errorf("polyline precision %d out of range", precision)
	}
	factor := math.Pow10(precision)

	coords := orb.LineString{}
	var previous [2]int64
	i := 0
	for i < len(encoded) {
		for axis := 0; axis < 2; axis++ {
			value, next, err := readValue(encoded, i)
			if err != nil {
				return nil, err
			}
			i = next
			previous[axis] += value
		}
		// decode order is (lat, lon); output order is (lon, lat)
		coords = append(coords, orb.Point{
			round(float64(previous[1])/factor, factor),
			round(float64(previous[0])/factor, factor),
		})
	}
	return coords, nil
}

// readValue reads one zig-zag encoded delta starting at offset i and returns
// the delta and the offset of the next unread byte.
func readValue(encoded string, i int) (int64, int, error) {
	var result int64
	shift := uint(0)
	for {
		if i >= len(encoded) {
			return 0, i, fmt.Errorf("%w: unexpected end of input at offset %d", ErrMalformed, i)
		}
		b := int64(encoded[i]) - chunkOffset
		if b < 0 || b > 0x3f {
			return 0, i, fmt.Errorf("%w: invalid byte %q at offset %d", ErrMalformed, encoded[i], i)
		}
		if shift > maxShift {
			return 0, i, fmt.Errorf("%w: value too long at offset %d", ErrMalformed, i)
		}
		i++
		result |= (b & payloadMask) << shift
		shift += 5
		if b < continuationAt {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}

func round(v, factor float64) float64 {
	return math.Round(v*factor) / factor
}

// Encode encodes (longitude, latitude) points with the given precision.
func Encode(coords orb.LineString, precision int) string {
	factor := math.Pow10(precision)
	buf := make([]byte, 0, len(coords)*8)
	var previous [2]int64
	for _, p := range coords {
		lat := int64(math.Round(p.Lat() * factor))
		lon := int64(math.Round(p.Lon() * factor))
		buf = appendValue(buf, lat-previous[0])
		buf = appendValue(buf, lon-previous[1])
		previous[0], previous[1] = lat, lon
	}
	return string(buf)
}

func appendValue(buf []byte, value int64) []byte {
	v := value << 1
	if value < 0 {
		v = ^v
	}
	for v >= continuationAt {
		buf = append(buf, byte((v&payloadMask)|continuationAt)+chunkOffset)
		v >>= 5
	}
	return append(buf, byte(v)+chunkOffset)
}
