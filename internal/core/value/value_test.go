package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
)

// TestNarrowSaturationError is concrete scenario 4: inserting 200 into an
// Int1 column with saturation=Error must fail with NumberOutOfRange.
func TestNarrowSaturationError(t *testing.T) {
	src := Value{Kind: KindInt8, Int: 200, Defined: true}
	_, err := Cast(src, KindInt1, SaturationError, cerrors.Fragment{})
	require.Error(t, err)
	var oor *cerrors.NumberOutOfRange
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, "Int1", oor.Target)
}

// TestNarrowSaturationUndefined is concrete scenario 4's other branch: with
// saturation=Undefined, the same out-of-range value produces an undefined
// cell rather than an error, and never panics.
func TestNarrowSaturationUndefined(t *testing.T) {
	src := Value{Kind: KindInt8, Int: 200, Defined: true}
	out, err := Cast(src, KindInt1, SaturationUndefined, cerrors.Fragment{})
	require.NoError(t, err)
	assert.False(t, out.Defined)
	assert.Equal(t, KindInt1, out.Kind)
}

func TestNarrowInRangeSucceeds(t *testing.T) {
	src := Value{Kind: KindInt8, Int: 100, Defined: true}
	out, err := Cast(src, KindInt1, SaturationError, cerrors.Fragment{})
	require.NoError(t, err)
	require.True(t, out.Defined)
	assert.Equal(t, int64(100), out.Int)
}

func TestWideningIntToFloat(t *testing.T) {
	src := Value{Kind: KindInt4, Int: 7, Defined: true}
	out, err := Cast(src, KindFloat8, SaturationError, cerrors.Fragment{})
	require.NoError(t, err)
	assert.Equal(t, 7.0, out.Float)
}

func TestCastIdentityReturnsSameValue(t *testing.T) {
	src := Value{Kind: KindUtf8, Str: "hi", Defined: true}
	out, err := Cast(src, KindUtf8, SaturationError, cerrors.Fragment{})
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestCastUndefinedInputStaysUndefinedRegardlessOfTarget(t *testing.T) {
	src := Undefined(KindInt8)
	out, err := Cast(src, KindFloat4, SaturationError, cerrors.Fragment{})
	require.NoError(t, err)
	assert.False(t, out.Defined)
	assert.Equal(t, KindFloat4, out.Kind)
}

func TestCastUnsupportedPair(t *testing.T) {
	src := Value{Kind: KindUuid4, Defined: true}
	_, err := Cast(src, KindBoolean, SaturationError, cerrors.Fragment{})
	require.Error(t, err)
	var unsupported *cerrors.UnsupportedCast
	require.ErrorAs(t, err, &unsupported)
}

func TestFormatToUtf8(t *testing.T) {
	src := Value{Kind: KindInt8, Int: 42, Defined: true}
	out, err := Cast(src, KindUtf8, SaturationError, cerrors.Fragment{})
	require.NoError(t, err)
	assert.Equal(t, "42", out.Str)
}

func TestParseFromUtf8Boolean(t *testing.T) {
	src := Value{Kind: KindUtf8, Str: "true", Defined: true}
	out, err := Cast(src, KindBoolean, SaturationError, cerrors.Fragment{})
	require.NoError(t, err)
	assert.True(t, out.Bool)
}

func TestParseFromUtf8InvalidFailsUnderError(t *testing.T) {
	src := Value{Kind: KindUtf8, Str: "not-a-number", Defined: true}
	_, err := Cast(src, KindInt4, SaturationError, cerrors.Fragment{})
	assert.Error(t, err)
}

func TestParseFromUtf8InvalidUndefinedUnderUndefinedSaturation(t *testing.T) {
	src := Value{Kind: KindUtf8, Str: "not-a-number", Defined: true}
	out, err := Cast(src, KindInt4, SaturationUndefined, cerrors.Fragment{})
	require.NoError(t, err)
	assert.False(t, out.Defined)
}

func TestKindStringRoundTripsThroughKindNames(t *testing.T) {
	for name, k := range kindNames {
		assert.NotEmpty(t, k.String(), "kind for %q has no String()", name)
		back, ok := KindFromName(k.String())
		assert.True(t, ok, "String() of the kind for %q is not a kind name", name)
		assert.Equal(t, k, back, "String() of the kind for %q does not map back", name)
	}
}
