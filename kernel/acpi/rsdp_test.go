package acpi

import "testing"

func TestSealAndParse(t *testing.T) {
	desc := &ExtRSDPDescriptor{
		RSDPDescriptor: RSDPDescriptor{
			Signature: Signature,
			OEMID:     [6]byte{'A', 'I', 'L', 'I', 'C', 'E'},
			Revision:  2,
			RSDTAddr:  0x7fe1000,
		},
		Length:   ExtRSDPSize,
		XSDTAddr: 0x7fe2000,
	}

	b := Seal(desc)
	if len(b) != ExtRSDPSize {
		t.Fatalf("expected encoded descriptor to be %d bytes; got %d", ExtRSDPSize, len(b))
	}

	got, err := ParseRSDP(b)
	if err != nil {
		t.Fatal(err)
	}

	if got.XSDTAddr != desc.XSDTAddr || got.RSDTAddr != desc.RSDTAddr {
		t.Fatalf("expected RSDT/XSDT 0x%x/0x%x; got 0x%x/0x%x", desc.RSDTAddr, desc.XSDTAddr, got.RSDTAddr, got.XSDTAddr)
	}
}

func TestParseRSDPErrors(t *testing.T) {
	valid := func() []byte {
		return Seal(&ExtRSDPDescriptor{
			RSDPDescriptor: RSDPDescriptor{Signature: Signature, Revision: 2},
			Length:         ExtRSDPSize,
		})
	}

	specs := []struct {
		name   string
		mutate func([]byte) []byte
		expErr error
	}{
		{"truncated header", func(b []byte) []byte { return b[:10] }, errTruncated},
		{"truncated extension", func(b []byte) []byte { return b[:RSDPSize+4] }, errTruncated},
		{"bad signature", func(b []byte) []byte { b[0] = 'X'; return b }, errBadSignature},
		{"bad checksum", func(b []byte) []byte { b[9]++; return b }, errBadChecksum},
		{"bad extended checksum", func(b []byte) []byte { b[24]++; return b }, errBadChecksum},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			if _, err := ParseRSDP(spec.mutate(valid())); err != spec.expErr {
				t.Fatalf("expected error %v; got %v", spec.expErr, err)
			}
		})
	}
}

func TestParseRSDPRevision1(t *testing.T) {
	desc := &ExtRSDPDescriptor{RSDPDescriptor: RSDPDescriptor{Signature: Signature, RSDTAddr: 0xe0000}}
	b := Seal(desc)[:RSDPSize]

	got, err := ParseRSDP(b)
	if err != nil {
		t.Fatal(err)
	}

	if got.XSDTAddr != 0 || got.RSDTAddr != 0xe0000 {
		t.Fatalf("unexpected descriptor contents: %+v", got)
	}
}
