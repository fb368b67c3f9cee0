package gate

import (
	"bytes"
	"strings"
	"testing"
)

func TestRegisterDump(t *testing.T) {
	regs := Registers{
		EAX:    1,
		EBX:    2,
		ECX:    3,
		EDX:    4,
		ESI:    5,
		EDI:    6,
		EBP:    7,
		CR2:    0xb8000,
		EIP:    0x08048000,
		CS:     0x23,
		EFlags: 0x202,
		ESP:    0x083ffffc,
		SS:     0x2b,
	}

	var buf bytes.Buffer
	regs.DumpTo(&buf)

	exp := "EAX = 00000001 EBX = 00000002\nECX = 00000003 EDX = 00000004\nESI = 00000005 EDI = 00000006\nEBP = 00000007 ERR = 00000000 CR2 = 000b8000\n\nEIP = 08048000 CS  = 00000023\nESP = 083ffffc SS  = 0000002b\nEFL = 00000202\n"

	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}

func TestExceptionNames(t *testing.T) {
	specs := []struct {
		n   InterruptNumber
		exp string
	}{
		{DivideByZero, "DIVIDE BY ZERO"},
		{InvalidOpcode, "INVALID OPCODE"},
		{GPFException, "GENERAL PROTECTION FAULT"},
		{PageFaultException, "PAGE FAULT"},
		{InterruptNumber(0x1f), "INTEL RESERVED"},
		{IRQBase, ""},
		{SyscallVector, ""},
	}

	for specIndex, spec := range specs {
		if got := spec.n.ExceptionName(); got != spec.exp {
			t.Errorf("[spec %d] expected name %q; got %q", specIndex, spec.exp, got)
		}
	}

	if !PageFaultException.IsException() || IRQBase.IsException() {
		t.Fatal("unexpected IsException result")
	}
}

func TestTableDispatch(t *testing.T) {
	var (
		table Table
		got   []uint32
	)

	if table.Dispatch(SyscallVector, &Registers{}) {
		t.Fatal("expected dispatch to a non-present vector to fail")
	}

	table.HandleInterrupt(SyscallVector, func(regs *Registers) {
		got = append(got, regs.Info)
		regs.EAX = 0xffffffff
	})

	if !table.Present(SyscallVector) {
		t.Fatal("expected vector to be present")
	}

	regs := Registers{EAX: 1}
	if !table.Dispatch(SyscallVector, &regs) {
		t.Fatal("expected dispatch to succeed")
	}

	if len(got) != 1 || got[0] != uint32(SyscallVector) {
		t.Fatalf("expected handler to observe vector 0x80; got %v", got)
	}

	if regs.EAX != 0xffffffff {
		t.Fatal("expected handler changes to registers to be visible to the caller")
	}

	table.HandleInterrupt(SyscallVector, nil)
	if table.Present(SyscallVector) {
		t.Fatal("expected vector to be cleared")
	}

	if !strings.Contains(InvalidTSS.ExceptionName(), "TSS") {
		t.Fatal("expected invalid TSS name")
	}
}
