package handlers

import "testing"

// Billing addresses arrive with either snake_case or camelCase name keys
// depending on the client; both must resolve.
func TestBillingFieldAcceptsBothSpellings(t *testing.T) {
	billing := map[string]interface{}{
		"email":     "guest@example.com",
		"firstName": "Akinyi",
		"lastName":  "Otieno",
		"phone":     "0712345678",
	}

	if got := billingField(billing, "first_name", "firstName"); got != "Akinyi" {
		t.Fatalf("first name = %q, want Akinyi", got)
	}
	if got := billingField(billing, "last_name", "lastName"); got != "Otieno" {
		t.Fatalf("last name = %q, want Otieno", got)
	}

	// snake_case still wins when present.
	billing["first_name"] = "Wanjiku"
	if got := billingField(billing, "first_name", "firstName"); got != "Wanjiku" {
		t.Fatalf("first name = %q, want Wanjiku", got)
	}

	// Non-string values and absent keys fall through to empty.
	billing["age"] = 30
	if got := billingField(billing, "age"); got != "" {
		t.Fatalf("non-string value = %q, want empty", got)
	}
	if got := billingField(billing, "missing"); got != "" {
		t.Fatalf("missing key = %q, want empty", got)
	}
}
