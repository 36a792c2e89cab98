package pool

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// RecordVersion is the layout version written by EncodeRecord. Layouts are
// append-only: a new version may add trailing fields but never reorders.
const RecordVersion uint8 = 1

// RecordSize is the encoded length of a version 1 record:
// discriminator, version, seven keys, three u64 and the bump.
const RecordSize = 8 + 1 + 7*solana.PublicKeyLength + 3*8 + 1

var recordDiscriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("account:PoolRecord"))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}()

// MarshalWithEncoder writes the record body in Borsh field order.
func (r Record) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, k := range []solana.PublicKey{r.Address, r.Authority, r.AssetA, r.AssetB, r.VaultA, r.VaultB, r.ShareMint} {
		if err := enc.WriteBytes(k[:], false); err != nil {
			return err
		}
	}
	for _, v := range []uint64{r.ReserveA, r.ReserveB, r.FeeBps} {
		if err := enc.WriteUint64(v, binary.LittleEndian); err != nil {
			return err
		}
	}
	return enc.WriteUint8(r.AuthorityBump)
}

func (r *Record) UnmarshalWithDecoder(dec *bin.Decoder) error {
	for _, k := range []*solana.PublicKey{&r.Address, &r.Authority, &r.AssetA, &r.AssetB, &r.VaultA, &r.VaultB, &r.ShareMint} {
		raw, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return err
		}
		copy(k[:], raw)
	}
	for _, v := range []*uint64{&r.ReserveA, &r.ReserveB, &r.FeeBps} {
		n, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return err
		}
		*v = n
	}
	bump, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	r.AuthorityBump = bump
	return nil
}

// EncodeRecord serialises r into its fixed-size, versioned layout.
func EncodeRecord(r Record) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, RecordSize))
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(recordDiscriminator[:], false); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if err := enc.WriteUint8(RecordVersion); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if err := r.MarshalWithEncoder(enc); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecord parses a record written by EncodeRecord.
func DecodeRecord(data []byte) (*Record, error) {
	if len(data) != RecordSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidRecord, RecordSize, len(data))
	}
	if !bytes.Equal(data[:8], recordDiscriminator[:]) {
		return nil, fmt.Errorf("%w: unknown discriminator", ErrInvalidRecord)
	}

	dec := bin.NewBorshDecoder(data[8:])
	version, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if version != RecordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidRecord, version)
	}

	var r Record
	if err := r.UnmarshalWithDecoder(dec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return &r, nil
}
