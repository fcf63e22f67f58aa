package ton

import (
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// CreateEscrowOpcode tags the message body understood by the escrow factory.
const CreateEscrowOpcode uint32 = 525909832

const amountBits = 128

// CreateEscrow is the body sent to the factory. Both confirmation bits start false.
type CreateEscrow struct {
	Client   *address.Address
	Provider *address.Address
	Amount   *big.Int
}

func (m CreateEscrow) Cell() (*cell.Cell, error) {
	if m.Client == nil || m.Provider == nil {
		return nil, fmt.Errorf("create escrow: client and provider addresses are required")
	}
	if m.Amount == nil || m.Amount.Sign() < 0 {
		return nil, fmt.Errorf("create escrow: amount must be a non-negative integer")
	}

	b := cell.BeginCell()
	if err := b.StoreUInt(uint64(CreateEscrowOpcode), 32); err != nil {
		return nil, fmt.Errorf("store opcode: %w", err)
	}
	if err := b.StoreAddr(m.Client); err != nil {
		return nil, fmt.Errorf("store client: %w", err)
	}
	if err := b.StoreAddr(m.Provider); err != nil {
		return nil, fmt.Errorf("store provider: %w", err)
	}
	if err := b.StoreBigUInt(m.Amount, amountBits); err != nil {
		return nil, fmt.Errorf("store amount: %w", err)
	}
	if err := b.StoreBoolBit(false); err != nil {
		return nil, err
	}
	if err := b.StoreBoolBit(false); err != nil {
		return nil, err
	}
	return b.EndCell(), nil
}

// Payload returns the body as a base64 bag of cells.
func (m CreateEscrow) Payload() (string, error) {
	c, err := m.Cell()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(c.ToBOC()), nil
}

// DecodeCreateEscrow parses a payload produced by Payload.
func DecodeCreateEscrow(payload string) (CreateEscrow, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return CreateEscrow{}, fmt.Errorf("decode base64: %w", err)
	}
	c, err := cell.FromBOC(raw)
	if err != nil {
		return CreateEscrow{}, fmt.Errorf("decode boc: %w", err)
	}
	s := c.BeginParse()

	op, err := s.LoadUInt(32)
	if err != nil {
		return CreateEscrow{}, fmt.Errorf("load opcode: %w", err)
	}
	if uint32(op) != CreateEscrowOpcode {
		return CreateEscrow{}, fmt.Errorf("unexpected opcode %d", op)
	}

	var m CreateEscrow
	if m.Client, err = s.LoadAddr(); err != nil {
		return CreateEscrow{}, fmt.Errorf("load client: %w", err)
	}
	if m.Provider, err = s.LoadAddr(); err != nil {
		return CreateEscrow{}, fmt.Errorf("load provider: %w", err)
	}
	if m.Amount, err = s.LoadBigUInt(amountBits); err != nil {
		return CreateEscrow{}, fmt.Errorf("load amount: %w", err)
	}
	for i := 0; i < 2; i++ {
		confirmed, err := s.LoadBoolBit()
		if err != nil {
			return CreateEscrow{}, fmt.Errorf("load confirmation flag: %w", err)
		}
		if confirmed {
			return CreateEscrow{}, fmt.Errorf("confirmation flags must start false")
		}
	}
	return m, nil
}
