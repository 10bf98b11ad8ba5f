package gateway

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestType_String(t *testing.T) {
	require.Equal(t, "programmable-internal", ProgrammableInternal.String())
	require.Equal(t, "programmable-external", ProgrammableExternal.String())
	require.Equal(t, "tx-only", TxOnly.String())
	require.Equal(t, "on-circuit", OnCircuit.String())
	require.Equal(t, "unknown", Type(42).String())
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("tx-only")
	require.NoError(t, err)
	require.Equal(t, TxOnly, typ)

	_, err = ParseType("abc")
	require.EqualError(t, err, "unknown gateway type 'abc'")
}

func TestGateway_ToFloat(t *testing.T) {
	gw := &Gateway{Decimals: 2}

	require.Equal(t, 0.05, gw.ToFloat(big.NewInt(5)))
	require.Equal(t, 12.34, gw.ToFloat(big.NewInt(1234)))
	require.Equal(t, 0.0, gw.ToFloat(nil))

	circuit := NewCircuit()
	require.Equal(t, 10.0, circuit.ToFloat(big.NewInt(10_000_000_000_000)))
}

func TestGateway_ScaleFloat(t *testing.T) {
	gw := &Gateway{Decimals: 2}

	require.Equal(t, 0.02, gw.ScaleFloat(2))
	require.Equal(t, 2.0, (&Gateway{}).ScaleFloat(2))
}

func TestGateway_FromFloat(t *testing.T) {
	circuit := NewCircuit()

	require.Equal(t, "10000000000000", circuit.FromFloat(10).String())
	require.Equal(t, "500000000000", circuit.FromFloat(0.5).String())
	require.Equal(t, "0", circuit.FromFloat(-1).String())

	gw := &Gateway{Decimals: 2}
	require.Equal(t, "123", gw.FromFloat(1.239).String())
}

func TestParseLE(t *testing.T) {
	value, err := ParseLE("0x0500000000000000")
	require.NoError(t, err)
	require.Equal(t, int64(5), value.Int64())

	value, err = ParseLE("0001")
	require.NoError(t, err)
	require.Equal(t, int64(256), value.Int64())

	_, err = ParseLE("0xzz")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid hex '0xzz'")
}

func TestEncodeLE(t *testing.T) {
	encoded := EncodeLE(big.NewInt(256), 4)
	require.Equal(t, "0x00010000", encoded)

	value, err := ParseLE(encoded)
	require.NoError(t, err)
	require.Equal(t, int64(256), value.Int64())
}

func TestRegistry_Get(t *testing.T) {
	reg := NewRegistry(&Gateway{ID: "roco"})

	gw, err := reg.Get("roco")
	require.NoError(t, err)
	require.Equal(t, "roco", gw.ID)

	_, err = reg.Get("abcd")
	require.True(t, xerrors.Is(err, ErrUnknownGateway))
	require.EqualError(t, err, "gateway 'abcd': unknown gateway")

	reg.Set(&Gateway{ID: "abcd"})
	require.Len(t, reg.All(), 2)
}
