package row

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reifydb/reifydb-sub032/internal/core/value"
)

func testSchema() *Schema {
	return NewSchema([]Field{
		{Name: "id", Kind: value.KindInt8},
		{Name: "active", Kind: value.KindBoolean},
		{Name: "name", Kind: value.KindUtf8},
		{Name: "balance", Kind: value.KindInt},
	})
}

func TestAllocateAndFixedCellRoundTrip(t *testing.T) {
	s := testSchema()
	r := s.Allocate()

	r.SetInt(0, 42)
	r.SetBool(1, true)
	r.SetString(2, "hello")

	n, ok := r.GetInt(0)
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	b, ok := r.GetBool(1)
	require.True(t, ok)
	assert.True(t, b)

	str, ok := r.GetString(2)
	require.True(t, ok)
	assert.Equal(t, "hello", str)
}

func TestUndefinedFieldIsNotValid(t *testing.T) {
	s := testSchema()
	r := s.Allocate()
	r.SetInt(0, 1)

	assert.True(t, r.IsValid(0))
	assert.False(t, r.IsValid(1))
	_, ok := r.GetBool(1)
	assert.False(t, ok)
}

// TestBigIntRoundTripPreservesSign is the fix for the defect where
// big.Int.Bytes() silently discarded the sign: a negative arbitrary-precision
// Int must come back negative after SetBigInt/GetBigInt.
func TestBigIntRoundTripPreservesSign(t *testing.T) {
	s := testSchema()

	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(42),
		big.NewInt(-42),
		new(big.Int).SetBytes([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}),
	}
	for _, n := range cases {
		neg := new(big.Int).Neg(n)
		r := s.Allocate()
		r.SetBigInt(3, neg)
		got, ok := r.GetBigInt(3)
		require.True(t, ok)
		assert.Equal(t, 0, neg.Cmp(got), "want %s got %s", neg, got)
		assert.Equal(t, neg.Sign(), got.Sign())
	}
}

func TestGetValueSetValueBigIntRoundTrip(t *testing.T) {
	s := testSchema()
	r := s.Allocate()

	want := value.Value{Kind: value.KindInt, Big: big.NewInt(-12345), Defined: true}
	r.SetValue(3, want)

	got := r.GetValue(3)
	require.True(t, got.Defined)
	assert.Equal(t, value.KindInt, got.Kind)
	assert.Equal(t, 0, want.Big.Cmp(got.Big))
}

func TestGetValueUndefinedField(t *testing.T) {
	s := testSchema()
	r := s.Allocate()

	got := r.GetValue(3)
	assert.False(t, got.Defined)
	assert.Equal(t, value.KindInt, got.Kind)
}

func TestCloneIsIndependentCopy(t *testing.T) {
	s := testSchema()
	r := s.Allocate()
	r.SetInt(0, 1)

	clone := r.Clone()
	clone.SetInt(0, 2)

	n, _ := r.GetInt(0)
	assert.Equal(t, int64(1), n)
	cn, _ := clone.GetInt(0)
	assert.Equal(t, int64(2), cn)
}

func TestTwoSchemasWithSameFieldsShareFingerprint(t *testing.T) {
	a := testSchema()
	b := testSchema()
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestSchemaWithDifferentFieldOrderHasDistinctFingerprint(t *testing.T) {
	a := NewSchema([]Field{{Name: "x", Kind: value.KindInt8}, {Name: "y", Kind: value.KindInt8}})
	b := NewSchema([]Field{{Name: "y", Kind: value.KindInt8}, {Name: "x", Kind: value.KindInt8}})
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}
