package ticketcode

import (
	"regexp"
	"strings"
	"testing"
)

func TestNumberShape(t *testing.T) {
	pattern := regexp.MustCompile(`^TKT-\d{8}-[0-9A-F]{8}$`)
	n := Number(PrefixEvent)
	if !pattern.MatchString(n) {
		t.Fatalf("ticket number %q does not match expected shape", n)
	}

	bus := Number(PrefixBus)
	if !strings.HasPrefix(bus, "BUS-") {
		t.Fatalf("bus ticket %q missing prefix", bus)
	}
}

func TestNumberUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		n := Number(PrefixEvent)
		if seen[n] {
			t.Fatalf("duplicate ticket number %q", n)
		}
		seen[n] = true
	}
}

func TestConfirmationCodeShape(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-F]{12}$`)
	code := ConfirmationCode()
	if !pattern.MatchString(code) {
		t.Fatalf("confirmation code %q does not match expected shape", code)
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	signer := NewSigner("test-signing-key")

	serialized, err := signer.Sign(Payload{
		TicketNumber: "TKT-12345678-ABCDEF01",
		EventID:      42,
		Owner:        "guest@example.com",
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	p, err := signer.Verify(serialized)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.TicketNumber != "TKT-12345678-ABCDEF01" || p.EventID != 42 {
		t.Fatalf("payload mismatch: %+v", p)
	}
	if p.Nonce == "" || p.IssuedAt == 0 {
		t.Fatalf("nonce/timestamp not filled: %+v", p)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer := NewSigner("test-signing-key")

	serialized, err := signer.Sign(Payload{TicketNumber: "TKT-12345678-ABCDEF01", Owner: "a@b.com"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tampered := strings.Replace(serialized, "ABCDEF01", "ABCDEF02", 1)
	if _, err := signer.Verify(tampered); err == nil {
		t.Fatal("tampered payload verified")
	}

	// A different key must also fail verification.
	if _, err := NewSigner("other-key").Verify(serialized); err == nil {
		t.Fatal("foreign key verified payload")
	}
}

func TestQRPNGProducesImage(t *testing.T) {
	png, err := QRPNG("TKT-12345678-ABCDEF01", 128)
	if err != nil {
		t.Fatalf("QRPNG: %v", err)
	}
	// PNG magic bytes.
	if len(png) < 8 || png[0] != 0x89 || string(png[1:4]) != "PNG" {
		t.Fatalf("output is not a PNG (%d bytes)", len(png))
	}
}
