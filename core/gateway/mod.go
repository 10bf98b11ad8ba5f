// Package gateway defines the metadata of the ledgers the executor can target
// and the conversions between their fixed-point amounts and human values.
package gateway

import (
	"encoding/hex"
	"math"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/xerrors"
)

// ErrUnknownGateway is returned when a gateway identifier is not part of the
// registry.
var ErrUnknownGateway = xerrors.New("unknown gateway")

// Type is the type of a gateway, as registered on the circuit.
type Type byte

const (
	// ProgrammableInternal is a gateway whose execution is driven by a
	// contract of the circuit.
	ProgrammableInternal Type = iota

	// ProgrammableExternal is a gateway to a ledger that supports smart
	// contracts.
	ProgrammableExternal

	// TxOnly is a gateway to a ledger that only supports transfers.
	TxOnly

	// OnCircuit is the circuit itself.
	OnCircuit
)

func (t Type) String() string {
	switch t {
	case ProgrammableInternal:
		return "programmable-internal"
	case ProgrammableExternal:
		return "programmable-external"
	case TxOnly:
		return "tx-only"
	case OnCircuit:
		return "on-circuit"
	default:
		return "unknown"
	}
}

// ParseType returns the gateway type matching the name.
func ParseType(name string) (Type, error) {
	for t := ProgrammableInternal; t <= OnCircuit; t++ {
		if t.String() == name {
			return t, nil
		}
	}

	return 0, xerrors.Errorf("unknown gateway type '%s'", name)
}

const (
	// CircuitID is the identifier of the circuit gateway.
	CircuitID = "circ"

	// RewardTicker is the ticker of the native asset of the protocol, used for
	// rewards and insurances.
	RewardTicker = "TRN"

	// CircuitDecimals is the number of decimals of the native asset.
	CircuitDecimals = 12
)

// Gateway is the description of a target ledger.
type Gateway struct {
	// ID is the 4-bytes identifier of the gateway.
	ID string

	// Ticker is the ticker of the native asset of the ledger.
	Ticker string

	// Decimals is the number of decimals of the native asset.
	Decimals uint8

	Type Type
}

// NewCircuit returns the gateway of the circuit that holds the reward asset.
func NewCircuit() *Gateway {
	return &Gateway{
		ID:       CircuitID,
		Ticker:   RewardTicker,
		Decimals: CircuitDecimals,
		Type:     OnCircuit,
	}
}

// ToFloat converts a fixed-point amount to its human value.
func (g *Gateway) ToFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}

	value, _ := new(big.Float).SetInt(amount).Float64()

	return g.ScaleFloat(value)
}

// ScaleFloat converts a value expressed in fixed-point units but stored as a
// float to its human value.
func (g *Gateway) ScaleFloat(native float64) float64 {
	return native / math.Pow10(int(g.Decimals))
}

// FromFloat converts a human value to its fixed-point representation. The
// fractional part smaller than the precision of the asset is truncated and a
// negative value is converted to zero.
func (g *Gateway) FromFloat(human float64) *big.Int {
	if human <= 0 || math.IsNaN(human) || math.IsInf(human, 0) {
		return big.NewInt(0)
	}

	value := new(big.Float).SetFloat64(human)
	value.Mul(value, g.unit())

	res, _ := value.Int(nil)

	return res
}

func (g *Gateway) unit() *big.Float {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.Decimals)), nil)

	return new(big.Float).SetInt(unit)
}

// ParseLE decodes an hexadecimal little-endian unsigned integer, as the
// arguments of the side effects are encoded.
func ParseLE(encoded string) (*big.Int, error) {
	buffer, err := hex.DecodeString(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		return nil, xerrors.Errorf("invalid hex '%s': %v", encoded, err)
	}

	for i, j := 0, len(buffer)-1; i < j; i, j = i+1, j-1 {
		buffer[i], buffer[j] = buffer[j], buffer[i]
	}

	return new(big.Int).SetBytes(buffer), nil
}

// EncodeLE encodes the integer as an hexadecimal little-endian string of the
// given size in bytes.
func EncodeLE(value *big.Int, size int) string {
	buffer := make([]byte, size)
	value.FillBytes(buffer)

	for i, j := 0, len(buffer)-1; i < j; i, j = i+1, j-1 {
		buffer[i], buffer[j] = buffer[j], buffer[i]
	}

	return "0x" + hex.EncodeToString(buffer)
}

// Registry is the list of known gateways, indexed by identifier.
type Registry struct {
	sync.RWMutex

	gateways map[string]*Gateway
}

// NewRegistry creates a registry populated with the gateways.
func NewRegistry(gateways ...*Gateway) *Registry {
	r := &Registry{
		gateways: make(map[string]*Gateway),
	}

	for _, gw := range gateways {
		r.gateways[gw.ID] = gw
	}

	return r
}

// Set adds or replaces a gateway.
func (r *Registry) Set(gw *Gateway) {
	r.Lock()
	r.gateways[gw.ID] = gw
	r.Unlock()
}

// Get returns the gateway of the given identifier.
func (r *Registry) Get(id string) (*Gateway, error) {
	r.RLock()
	defer r.RUnlock()

	gw, found := r.gateways[id]
	if !found {
		return nil, xerrors.Errorf("gateway '%s': %w", id, ErrUnknownGateway)
	}

	return gw, nil
}

// All returns the gateways of the registry.
func (r *Registry) All() []*Gateway {
	r.RLock()
	defer r.RUnlock()

	res := make([]*Gateway, 0, len(r.gateways))
	for _, gw := range r.gateways {
		res = append(res, gw)
	}

	return res
}
