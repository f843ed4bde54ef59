package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event and function signatures of the DroneRegistry contract.
const (
	RegisteredFlightSig = "RegisteredFlight(uint256,address)"
	FlightRegisteredSig = "FlightRegistered(uint256,address,bytes32)"

	RegisterFlightSig         = "registerFlight()"
	RegisterFlightWithHashSig = "registerFlight(bytes32)"
	DroneIDSig                = "droneId()"
)

var (
	RegisteredFlightTopic = crypto.Keccak256Hash([]byte(RegisteredFlightSig))
	FlightRegisteredTopic = crypto.Keccak256Hash([]byte(FlightRegisteredSig))
)

// Selector returns the 4-byte function selector of a signature.
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// EncodeRegisterFlight builds calldata for registerFlight. A nil hash
// selects the argument-less variant.
func EncodeRegisterFlight(dataHash *common.Hash) []byte {
	if dataHash == nil {
		return Selector(RegisterFlightSig)
	}
	data := make([]byte, 0, 4+common.HashLength)
	data = append(data, Selector(RegisterFlightWithHashSig)...)
	return append(data, dataHash.Bytes()...)
}

// txHash derives a deterministic transaction hash for a registration.
func txHash(chainID uint64, contract common.Address, flightID uint64, registrant common.Address, dataHash *common.Hash) common.Hash {
	parts := [][]byte{
		common.LeftPadBytes(new(big.Int).SetUint64(chainID).Bytes(), 32),
		contract.Bytes(),
		common.LeftPadBytes(new(big.Int).SetUint64(flightID).Bytes(), 32),
		registrant.Bytes(),
	}
	if dataHash != nil {
		parts = append(parts, dataHash.Bytes())
	}
	return crypto.Keccak256Hash(parts...)
}
