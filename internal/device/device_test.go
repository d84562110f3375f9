// internal/device/device_test.go
package device

import (
	"context"
	"errors"
	"testing"
)

// ---- fake transport ----

type fakeTransport struct {
	writes []writeCall
	reads  []readCall

	readPayload []byte
	failWrite   error
	failRead    error
}

type writeCall struct {
	addr  uint16
	qty   uint16
	value []byte
}

type readCall struct {
	addr uint16
	qty  uint16
}

func (f *fakeTransport) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	f.reads = append(f.reads, readCall{addr: address, qty: quantity})
	if f.failRead != nil {
		return nil, f.failRead
	}
	return f.readPayload, nil
}

func (f *fakeTransport) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	f.writes = append(f.writes, writeCall{addr: address, qty: quantity, value: append([]byte(nil), value...)})
	if f.failWrite != nil {
		return nil, f.failWrite
	}
	return nil, nil
}

// ---- tests ----

func TestSendCommandWritesPair(t *testing.T) {
	tr := &fakeTransport{}
	d, err := New(tr)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	if err := d.SendCommand(context.Background(), CmdSetTIAGain, 3); err != nil {
		t.Fatalf("SendCommand err=%v", err)
	}

	if len(tr.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(tr.writes))
	}
	w := tr.writes[0]
	if w.addr != AddrCommand || w.qty != 2 {
		t.Fatalf("unexpected write geometry addr=%#x qty=%d", w.addr, w.qty)
	}
	want := []byte{0x00, 0xE3, 0x00, 0x03}
	for i := range want {
		if w.value[i] != want[i] {
			t.Fatalf("byte %d: got %#02x want %#02x", i, w.value[i], want[i])
		}
	}
}

func TestStartPIDAppendsPackedTarget(t *testing.T) {
	tr := &fakeTransport{}
	d, _ := New(tr)

	if err := d.StartPID(context.Background(), 0.5); err != nil {
		t.Fatalf("StartPID err=%v", err)
	}

	w := tr.writes[0]
	if w.addr != AddrCommand || w.qty != 3 {
		t.Fatalf("unexpected write geometry addr=%#x qty=%d", w.addr, w.qty)
	}
	regs := unpackRegisters(w.value)
	if regs[0] != uint16(CmdPIDStart) {
		t.Fatalf("first word %#x, want PID_START", regs[0])
	}
	if got := WordsToFloat(regs[1], regs[2]); got != 0.5 {
		t.Fatalf("target decoded as %g", got)
	}
}

func TestReadWordsDecodesBigEndian(t *testing.T) {
	tr := &fakeTransport{readPayload: []byte{0x00, 0x01, 0x3F, 0x00}}
	d, _ := New(tr)

	words, err := d.ReadWords(context.Background(), AddrSamples, 2)
	if err != nil {
		t.Fatalf("ReadWords err=%v", err)
	}
	if len(words) != 2 || words[0] != 0x0001 || words[1] != 0x3F00 {
		t.Fatalf("unexpected words %#v", words)
	}
	if tr.reads[0].addr != AddrSamples || tr.reads[0].qty != 2 {
		t.Fatalf("unexpected read geometry %+v", tr.reads[0])
	}
}

func TestTransportFaultIsLinkError(t *testing.T) {
	cause := errors.New("timeout")
	tr := &fakeTransport{failRead: cause, failWrite: cause}
	d, _ := New(tr)

	_, err := d.ReadWords(context.Background(), AddrSamples, 120)
	if !IsLinkError(err) || !errors.Is(err, cause) {
		t.Fatalf("read: expected LinkError wrapping cause, got %v", err)
	}

	err = d.SendCommand(context.Background(), CmdTestStop, 1)
	if !IsLinkError(err) || !errors.Is(err, cause) {
		t.Fatalf("command: expected LinkError wrapping cause, got %v", err)
	}
	if len(tr.writes) != 1 {
		t.Fatalf("driver must not retry, saw %d writes", len(tr.writes))
	}
}

func TestOddPayloadIsLinkError(t *testing.T) {
	tr := &fakeTransport{readPayload: []byte{0x01, 0x02, 0x03}}
	d, _ := New(tr)

	if _, err := d.ReadWords(context.Background(), AddrSamples, 2); !IsLinkError(err) {
		t.Fatalf("expected LinkError, got %v", err)
	}
}

func TestCancelledContextSkipsIO(t *testing.T) {
	tr := &fakeTransport{}
	d, _ := New(tr, WithRateLimit(1000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.WriteWords(ctx, AddrStimulus, []uint16{1, 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(tr.writes) != 0 {
		t.Fatalf("expected no transport traffic, got %d writes", len(tr.writes))
	}
}

func TestParseGain(t *testing.T) {
	cases := map[string]Gain{"1k": Gain1K, "10K": Gain10K, "2": Gain100K, "1M": Gain1M, " 10m ": Gain10M}
	for in, want := range cases {
		got, err := ParseGain(in)
		if err != nil || got != want {
			t.Fatalf("ParseGain(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseGain("5"); err == nil {
		t.Fatalf("expected error for out of range gain")
	}
	if Gain10M.Ohms() != 1e7 {
		t.Fatalf("10M gain ohms = %g", Gain10M.Ohms())
	}
}
