package ir

import "github.com/fxamacker/cbor/v2"

// Wire format for programs, used to cache lowered circuits on disk.
// Field elements travel as 32 big-endian bytes (fr.Element.Bytes), so the
// encoding is independent of the Montgomery representation.

type instRecord struct {
	Op     uint8  `cbor:"1,keyasint"`
	Result uint32 `cbor:"2,keyasint"`
	X      uint32 `cbor:"3,keyasint,omitempty"`
	Y      uint32 `cbor:"4,keyasint,omitempty"`
	Z      uint32 `cbor:"5,keyasint,omitempty"`
	Value  []byte `cbor:"6,keyasint,omitempty"`
	Name   string `cbor:"7,keyasint,omitempty"`
	Vis    uint8  `cbor:"8,keyasint,omitempty"`
	Bits   uint32 `cbor:"9,keyasint,omitempty"`
}

type programRecord struct {
	Instructions []instRecord      `cbor:"1,keyasint"`
	NextVar      uint32            `cbor:"2,keyasint"`
	VarNames     map[uint32]string `cbor:"3,keyasint,omitempty"`
	VarTypes     map[uint32]uint8  `cbor:"4,keyasint,omitempty"`
}

// MarshalBinary encodes the program as canonical CBOR.
func (p *Program) MarshalBinary() ([]byte, error) {
	rec := programRecord{
		Instructions: make([]instRecord, len(p.Instructions)),
		NextVar:      uint32(p.NextVar),
	}
	for i := range p.Instructions {
		in := &p.Instructions[i]
		r := instRecord{
			Op:     uint8(in.Op),
			Result: uint32(in.Result),
			X:      uint32(in.X),
			Y:      uint32(in.Y),
			Z:      uint32(in.Z),
			Name:   in.Name,
			Vis:    uint8(in.Visibility),
			Bits:   in.Bits,
		}
		if in.Op == OpConst {
			b := in.Value.Bytes()
			r.Value = b[:]
		}
		rec.Instructions[i] = r
	}
	if len(p.VarNames) > 0 {
		rec.VarNames = make(map[uint32]string, len(p.VarNames))
		for v, n := range p.VarNames {
			rec.VarNames[uint32(v)] = n
		}
	}
	if len(p.VarTypes) > 0 {
		rec.VarTypes = make(map[uint32]uint8, len(p.VarTypes))
		for v, t := range p.VarTypes {
			rec.VarTypes[uint32(v)] = uint8(t)
		}
	}

	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return mode.Marshal(rec)
}

// UnmarshalBinary decodes a program previously written by MarshalBinary.
func (p *Program) UnmarshalBinary(data []byte) error {
	var rec programRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return err
	}

	p.Instructions = make([]Instruction, len(rec.Instructions))
	p.NextVar = Var(rec.NextVar)
	p.VarNames = make(map[Var]string, len(rec.VarNames))
	p.VarTypes = make(map[Var]Type, len(rec.VarTypes))

	for i := range rec.Instructions {
		r := &rec.Instructions[i]
		in := Instruction{
			Op:         OpCode(r.Op),
			Result:     Var(r.Result),
			X:          Var(r.X),
			Y:          Var(r.Y),
			Z:          Var(r.Z),
			Name:       r.Name,
			Visibility: Visibility(r.Vis),
			Bits:       r.Bits,
		}
		if len(r.Value) > 0 {
			if err := in.Value.SetBytesCanonical(r.Value); err != nil {
				return err
			}
		}
		p.Instructions[i] = in
	}
	for v, n := range rec.VarNames {
		p.VarNames[Var(v)] = n
	}
	for v, t := range rec.VarTypes {
		p.VarTypes[Var(v)] = Type(t)
	}
	return nil
}
