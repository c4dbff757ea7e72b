package value

import (
	"fmt"
	"math"
	"strconv"

	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
)

// Saturation is the per-column policy (spec §4.7, glossary "Saturation
// policy") governing narrowing/overflow behavior during conversion.
type Saturation uint8

const (
	// SaturationError fails the row with NumberOutOfRange / IntegerPrecisionLoss.
	SaturationError Saturation = iota
	// SaturationUndefined turns out-of-range values into undefined, never panics.
	SaturationUndefined
)

// CastKind classifies how a (source, target) pair is converted.
type CastKind uint8

const (
	CastIdentity CastKind = iota
	CastWidening
	CastNarrowing
	CastParseFromUtf8
	CastFormatToUtf8
	CastUnsupported
)

// CastClass reports which of the five conversion classes applies to a
// (from, to) pair, per spec §4.7.
func CastClass(from, to Kind) CastKind {
	if from == to {
		return CastIdentity
	}
	if to == KindUtf8 {
		return CastFormatToUtf8
	}
	if from == KindUtf8 {
		return CastParseFromUtf8
	}
	if isNumeric(from) && isNumeric(to) {
		if widens(from, to) {
			return CastWidening
		}
		return CastNarrowing
	}
	return CastUnsupported
}

func isNumeric(k Kind) bool {
	switch k {
	case KindInt1, KindInt2, KindInt4, KindInt8, KindInt16,
		KindUint1, KindUint2, KindUint4, KindUint8, KindUint16,
		KindFloat4, KindFloat8, KindDecimal, KindInt, KindUint:
		return true
	}
	return false
}

// widthRank orders numeric kinds by representable range, used to decide
// widening vs. narrowing. Float4 shares the rank of the 4-byte integers and
// Float8 that of the 8-byte integers, so an integer converts to a float by
// widening only when the float's rank is strictly higher.
var widthRank = map[Kind]int{
	KindInt1: 1, KindUint1: 1,
	KindInt2: 2, KindUint2: 2,
	KindInt4: 3, KindUint4: 3, KindFloat4: 3,
	KindInt8: 4, KindUint8: 4, KindFloat8: 4,
	KindInt16: 5, KindUint16: 5, KindDecimal: 5,
	KindInt: 6, KindUint: 6,
}

func widens(from, to Kind) bool {
	// Same signedness family widening, or integer->wider-float.
	if (isInt(from) && isUint(to)) || (isUint(from) && isInt(to)) {
		return false
	}
	rf, rt := widthRank[from], widthRank[to]
	if rt < rf {
		return false
	}
	if rt > rf {
		return true
	}
	// Equal rank: unsigned->signed of the same width narrows (range
	// shrinks on the high end); signed->unsigned narrows (loses negatives).
	return from == to
}

// Cast converts v (of v.Kind) to target kind under the given saturation
// policy. fragment is attached to any error produced.
func Cast(v Value, target Kind, sat Saturation, fragment cerrors.Fragment) (Value, error) {
	if !v.Defined {
		return Undefined(target), nil
	}
	switch CastClass(v.Kind, target) {
	case CastIdentity:
		return v, nil
	case CastUnsupported:
		return Value{}, &cerrors.UnsupportedCast{From: v.Kind.String(), To: target.String(), Fragment: fragment}
	case CastFormatToUtf8:
		return Value{Kind: KindUtf8, Str: v.String(), Defined: true}, nil
	case CastParseFromUtf8:
		return parseFromUtf8(v.Str, target, sat, fragment)
	case CastWidening:
		return widen(v, target), nil
	case CastNarrowing:
		return narrow(v, target, sat, fragment)
	}
	return Value{}, cerrors.Internal("unreachable cast class")
}

func widen(v Value, target Kind) Value {
	out := Value{Kind: target, Defined: true}
	switch {
	case isInt(v.Kind) && isInt(target):
		out.Int = v.Int
	case isUint(v.Kind) && isUint(target):
		out.Uint = v.Uint
	case isInt(v.Kind) && isFloatKind(target):
		out.Float = float64(v.Int)
	case isUint(v.Kind) && isFloatKind(target):
		out.Float = float64(v.Uint)
	case isFloatKind(v.Kind) && isFloatKind(target):
		out.Float = v.Float
	default:
		// Falls through to Decimal/Int/Uint big-integer widenings.
		out = toBigOrDecimal(v, target)
	}
	return out
}

func narrow(v Value, target Kind, sat Saturation, fragment cerrors.Fragment) (Value, error) {
	lo, hi, isFloatTarget := rangeOf(target)
	var srcAsFloat float64
	var srcAsInt int64
	var signed bool
	switch {
	case isInt(v.Kind):
		srcAsInt = v.Int
		srcAsFloat = float64(v.Int)
		signed = true
	case isUint(v.Kind):
		srcAsInt = int64(v.Uint)
		srcAsFloat = float64(v.Uint)
	case isFloatKind(v.Kind):
		srcAsFloat = v.Float
		srcAsInt = int64(v.Float)
	}

	if isFloatTarget {
		out := Value{Kind: target, Defined: true, Float: srcAsFloat}
		if isInt(v.Kind) || isUint(v.Kind) {
			rounded := srcAsFloat
			if target == KindFloat4 {
				rounded = float64(float32(srcAsFloat))
			}
			exact := rounded == srcAsFloat && srcAsFloat < 0x1p63 && int64(srcAsFloat) == srcAsInt
			if !signed {
				exact = rounded == srcAsFloat && srcAsFloat < 0x1p64 && uint64(srcAsFloat) == v.Uint
			}
			if !exact {
				if sat == SaturationUndefined {
					return Undefined(target), nil
				}
				return Value{}, &cerrors.IntegerPrecisionLoss{Source: v.Kind.String(), Target: target.String(), Fragment: fragment}
			}
		}
		return out, nil
	}

	if signed && isIntInRangeFloat(srcAsFloat, lo, hi) {
		return intResult(target, srcAsInt), nil
	}
	if !signed && isIntInRangeFloat(srcAsFloat, lo, hi) {
		return intResult(target, srcAsInt), nil
	}

	// Out of range.
	if sat == SaturationUndefined {
		return Undefined(target), nil
	}
	if isInt(v.Kind) && isFloatKind(v.Kind) {
		return Value{}, &cerrors.IntegerPrecisionLoss{Source: v.Kind.String(), Target: target.String(), Fragment: fragment}
	}
	return Value{}, &cerrors.NumberOutOfRange{
		Target:     target.String(),
		Descriptor: fmt.Sprintf("%v not in [%v, %v]", srcAsFloat, lo, hi),
		Fragment:   fragment,
	}
}

func intResult(target Kind, n int64) Value {
	out := Value{Kind: target, Defined: true}
	if isUint(target) {
		out.Uint = uint64(n)
	} else {
		out.Int = n
	}
	return out
}

func isIntInRangeFloat(v, lo, hi float64) bool {
	return v >= lo && v <= hi && v == math.Trunc(v)
}

func rangeOf(k Kind) (lo, hi float64, isFloat bool) {
	switch k {
	case KindInt1:
		return math.MinInt8, math.MaxInt8, false
	case KindInt2:
		return math.MinInt16, math.MaxInt16, false
	case KindInt4:
		return math.MinInt32, math.MaxInt32, false
	case KindInt8, KindInt16:
		return math.MinInt64, math.MaxInt64, false
	case KindUint1:
		return 0, math.MaxUint8, false
	case KindUint2:
		return 0, math.MaxUint16, false
	case KindUint4:
		return 0, math.MaxUint32, false
	case KindUint8, KindUint16:
		return 0, math.MaxUint64, false
	case KindFloat4, KindFloat8:
		return -math.MaxFloat64, math.MaxFloat64, true
	default:
		return -math.MaxFloat64, math.MaxFloat64, true
	}
}

func isInt(k Kind) bool {
	switch k {
	case KindInt1, KindInt2, KindInt4, KindInt8, KindInt16:
		return true
	}
	return false
}

func isUint(k Kind) bool {
	switch k {
	case KindUint1, KindUint2, KindUint4, KindUint8, KindUint16:
		return true
	}
	return false
}

func isFloatKind(k Kind) bool { return k == KindFloat4 || k == KindFloat8 }

func toBigOrDecimal(v Value, target Kind) Value {
	// Widening into Int/Uint (arbitrary precision) or Decimal.
	out := Value{Kind: target, Defined: true}
	switch target {
	case KindDecimal:
		switch {
		case isInt(v.Kind):
			out.Dec = decimalFromInt(v.Int)
		case isUint(v.Kind):
			out.Dec = decimalFromUint(v.Uint)
		case isFloatKind(v.Kind):
			out.Dec = decimalFromFloat(v.Float)
		}
	case KindInt, KindUint:
		out.Big = bigFromValue(v)
	}
	return out
}

func parseFromUtf8(s string, target Kind, sat Saturation, fragment cerrors.Fragment) (Value, error) {
	fail := func() (Value, error) {
		if sat == SaturationUndefined {
			return Undefined(target), nil
		}
		return Value{}, &cerrors.UnsupportedCast{From: "Utf8", To: target.String(), Fragment: fragment}
	}
	switch target {
	case KindBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fail()
		}
		return Value{Kind: target, Bool: b, Defined: true}, nil
	case KindInt1, KindInt2, KindInt4, KindInt8, KindInt16:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fail()
		}
		return narrow(Value{Kind: KindInt8, Int: n, Defined: true}, target, sat, fragment)
	case KindUint1, KindUint2, KindUint4, KindUint8, KindUint16:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fail()
		}
		return narrow(Value{Kind: KindUint8, Uint: n, Defined: true}, target, sat, fragment)
	case KindFloat4, KindFloat8:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fail()
		}
		return Value{Kind: target, Float: f, Defined: true}, nil
	case KindUtf8:
		return Value{Kind: KindUtf8, Str: s, Defined: true}, nil
	default:
		return fail()
	}
}
