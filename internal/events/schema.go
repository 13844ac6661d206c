package events

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58"

	"github.com/dlnlabs/dln-indexer/internal/config"
)

// Event names as declared by the DLN programs. The on-wire discriminator is
// derived from the name, so these strings must match the program IDL exactly.
const (
	NameCreatedOrder   = "CreatedOrder"
	NameCreatedOrderID = "CreatedOrderId"
	NameFulfilled      = "Fulfilled"
)

// DiscriminatorLen is the fixed prefix length of every Anchor event payload.
const DiscriminatorLen = 8

// EventDiscriminator derives the 8-byte payload prefix for an event name.
func EventDiscriminator(name string) [DiscriminatorLen]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var disc [DiscriminatorLen]byte
	copy(disc[:], sum[:DiscriminatorLen])
	return disc
}

var (
	discCreatedOrder   = EventDiscriminator(NameCreatedOrder)
	discCreatedOrderID = EventDiscriminator(NameCreatedOrderID)
	discFulfilled      = EventDiscriminator(NameFulfilled)
)

// Offer is one side of a cross-chain order. ChainID and Amount are 256-bit
// big-endian unsigned integers; TokenAddress is chain-specific and is exactly
// 32 bytes for Solana mints.
type Offer struct {
	ChainID      [32]byte
	TokenAddress []byte
	Amount       [32]byte
}

// ChainIDInt returns the offer's chain ID as an arbitrary-precision integer.
func (o Offer) ChainIDInt() *big.Int {
	return new(big.Int).SetBytes(o.ChainID[:])
}

// AmountInt returns the offer's raw token amount as an arbitrary-precision
// integer.
func (o Offer) AmountInt() *big.Int {
	return new(big.Int).SetBytes(o.Amount[:])
}

// TokenBase58 renders the offer's token address the way Solana mints are
// written.
func (o Offer) TokenBase58() string {
	return base58.Encode(o.TokenAddress)
}

func (o *Offer) UnmarshalWithDecoder(dec *bin.Decoder) error {
	chainID, err := dec.ReadNBytes(32)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	copy(o.ChainID[:], chainID)

	if o.TokenAddress, err = dec.ReadByteSlice(); err != nil {
		return fmt.Errorf("token address: %w", err)
	}

	amount, err := dec.ReadNBytes(32)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	copy(o.Amount[:], amount)
	return nil
}

func (o Offer) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(o.ChainID[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(o.TokenAddress, true); err != nil {
		return err
	}
	return enc.WriteBytes(o.Amount[:], false)
}

// Order is the full order payload carried by a CreatedOrder event. Optional
// fields are nil when absent.
type Order struct {
	MakerOrderNonce             uint64
	MakerSrc                    []byte
	Give                        Offer
	Take                        Offer
	ReceiverDst                 []byte
	GivePatchAuthoritySrc       []byte
	OrderAuthorityAddressDst    []byte
	AllowedTakerDst             []byte
	AllowedCancelBeneficiarySrc []byte
	ExternalCall                []byte
}

func (o *Order) UnmarshalWithDecoder(dec *bin.Decoder) error {
	nonce, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("maker order nonce: %w", err)
	}
	o.MakerOrderNonce = nonce

	if o.MakerSrc, err = dec.ReadByteSlice(); err != nil {
		return fmt.Errorf("maker src: %w", err)
	}
	if err = o.Give.UnmarshalWithDecoder(dec); err != nil {
		return fmt.Errorf("give offer: %w", err)
	}
	if err = o.Take.UnmarshalWithDecoder(dec); err != nil {
		return fmt.Errorf("take offer: %w", err)
	}
	if o.ReceiverDst, err = dec.ReadByteSlice(); err != nil {
		return fmt.Errorf("receiver dst: %w", err)
	}
	if o.GivePatchAuthoritySrc, err = dec.ReadByteSlice(); err != nil {
		return fmt.Errorf("give patch authority src: %w", err)
	}
	if o.OrderAuthorityAddressDst, err = dec.ReadByteSlice(); err != nil {
		return fmt.Errorf("order authority address dst: %w", err)
	}
	if o.AllowedTakerDst, err = readOptionalBytes(dec); err != nil {
		return fmt.Errorf("allowed taker dst: %w", err)
	}
	if o.AllowedCancelBeneficiarySrc, err = readOptionalBytes(dec); err != nil {
		return fmt.Errorf("allowed cancel beneficiary src: %w", err)
	}
	if o.ExternalCall, err = readOptionalBytes(dec); err != nil {
		return fmt.Errorf("external call: %w", err)
	}
	return nil
}

func (o Order) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(o.MakerOrderNonce, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteBytes(o.MakerSrc, true); err != nil {
		return err
	}
	if err := o.Give.MarshalWithEncoder(enc); err != nil {
		return err
	}
	if err := o.Take.MarshalWithEncoder(enc); err != nil {
		return err
	}
	if err := enc.WriteBytes(o.ReceiverDst, true); err != nil {
		return err
	}
	if err := enc.WriteBytes(o.GivePatchAuthoritySrc, true); err != nil {
		return err
	}
	if err := enc.WriteBytes(o.OrderAuthorityAddressDst, true); err != nil {
		return err
	}
	if err := writeOptionalBytes(enc, o.AllowedTakerDst); err != nil {
		return err
	}
	if err := writeOptionalBytes(enc, o.AllowedCancelBeneficiarySrc); err != nil {
		return err
	}
	return writeOptionalBytes(enc, o.ExternalCall)
}

// CreatedOrder is emitted by the source program alongside CreatedOrderID.
type CreatedOrder struct {
	Order Order
}

func (e *CreatedOrder) UnmarshalWithDecoder(dec *bin.Decoder) error {
	if err := e.Order.UnmarshalWithDecoder(dec); err != nil {
		return fmt.Errorf("order: %w", err)
	}
	return nil
}

func (e CreatedOrder) MarshalWithEncoder(enc *bin.Encoder) error {
	return e.Order.MarshalWithEncoder(enc)
}

// CreatedOrderID carries the protocol-computed 32-byte identifier of an order
// created in the same transaction.
type CreatedOrderID struct {
	OrderID [32]byte
}

func (e *CreatedOrderID) UnmarshalWithDecoder(dec *bin.Decoder) error {
	id, err := dec.ReadNBytes(32)
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	copy(e.OrderID[:], id)
	return nil
}

func (e CreatedOrderID) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteBytes(e.OrderID[:], false)
}

// Fulfilled is emitted by the destination program when a taker fills an order.
type Fulfilled struct {
	OrderID [32]byte
	Taker   [32]byte
}

func (e *Fulfilled) UnmarshalWithDecoder(dec *bin.Decoder) error {
	id, err := dec.ReadNBytes(32)
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	copy(e.OrderID[:], id)

	taker, err := dec.ReadNBytes(32)
	if err != nil {
		return fmt.Errorf("taker: %w", err)
	}
	copy(e.Taker[:], taker)
	return nil
}

func (e Fulfilled) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(e.OrderID[:], false); err != nil {
		return err
	}
	return enc.WriteBytes(e.Taker[:], false)
}

// readOptionalBytes reads a borsh Option<Vec<u8>>: a tag byte, then the
// length-prefixed bytes when the tag is 1.
func readOptionalBytes(dec *bin.Decoder) ([]byte, error) {
	tag, err := dec.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		return dec.ReadByteSlice()
	default:
		return nil, fmt.Errorf("%w: option tag %d", config.ErrMalformedEvent, tag)
	}
}

func writeOptionalBytes(enc *bin.Encoder, b []byte) error {
	if b == nil {
		return enc.WriteByte(0)
	}
	if err := enc.WriteByte(1); err != nil {
		return err
	}
	return enc.WriteBytes(b, true)
}
