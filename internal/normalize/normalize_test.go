package normalize

import "testing"

func TestInvoiceNumberNorm(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"INV-0042", "42"},
		{"invoice_0042", "42"},
		{"BILL/0042", "42"},
		{" 0042 ", "42"},
		{"0000", "0"},
		{"", "0"},
		{"ABC-123", "ABC123"},
	}
	for _, tc := range cases {
		got := InvoiceNumberNorm(tc.in)
		if got != tc.expected {
			t.Fatalf("InvoiceNumberNorm(%q) = %q, want %q", tc.in, got, tc.expected)
		}
	}
}

func TestInvoiceNumberNormIdempotent(t *testing.T) {
	for _, in := range []string{"INV-0042", "BILL_777", "  ABC-0099  "} {
		once := InvoiceNumberNorm(in)
		twice := InvoiceNumberNorm(once)
		if once != twice {
			t.Fatalf("InvoiceNumberNorm not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestDescNorm(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Widget, Model #42!", "widget model 42"},
		{"  multiple   spaces  ", "multiple spaces"},
		{"UPPER-case_stuff", "upper case stuff"},
	}
	for _, tc := range cases {
		got := DescNorm(tc.in)
		if got != tc.expected {
			t.Fatalf("DescNorm(%q) = %q, want %q", tc.in, got, tc.expected)
		}
	}
}

func TestMaskAccountLast4(t *testing.T) {
	empty := ""
	abc := "ABC"
	digits := "12-3456-7890"
	short := "12"

	if got := MaskAccountLast4(nil); got != nil {
		t.Fatalf("expected nil for nil input, got %v", got)
	}
	if got := MaskAccountLast4(&empty); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := MaskAccountLast4(&abc); got == nil || *got != "****" {
		t.Fatalf("expected **** for no-digit input, got %v", got)
	}
	if got := MaskAccountLast4(&digits); got == nil || *got != "****7890" {
		t.Fatalf("expected ****7890, got %v", got)
	}
	if got := MaskAccountLast4(&short); got == nil || *got != "****12" {
		t.Fatalf("expected ****12 for short digit string, got %v", got)
	}
}

func TestHashAccountDeterministic(t *testing.T) {
	a := "GB29NWBK60161331926819"
	b := "GB29NWBK60161331926819"
	c := "GB29NWBK60161331926820"

	ha := HashAccount(&a)
	hb := HashAccount(&b)
	hc := HashAccount(&c)

	if ha == nil || hb == nil || hc == nil {
		t.Fatal("unexpected nil hash")
	}
	if *ha != *hb {
		t.Fatalf("expected identical hashes for identical input, got %s vs %s", *ha, *hb)
	}
	if *ha == *hc {
		t.Fatal("expected different hashes for different input")
	}
	if len(*ha) != 64 {
		t.Fatalf("expected 64 hex chars (sha256), got %d", len(*ha))
	}
}

func TestTextBlob(t *testing.T) {
	lines := []LineItemText{
		{SKU: "SKU-1", Desc: "Widget A"},
		{SKU: "", Desc: "Widget B"},
	}
	got := TextBlob("Acme Corp", "PO-100", "Net 30", lines)
	want := "acme corp po-100 net 30 sku-1 widget a widget b"
	if got != want {
		t.Fatalf("TextBlob = %q, want %q", got, want)
	}
}

func TestPayloadHashStableAcrossKeyOrder(t *testing.T) {
	a := []byte(`{"b": 2, "a": 1, "nested": {"y": 2, "x": 1}}`)
	b := []byte(`{"a": 1, "nested": {"x": 1, "y": 2}, "b": 2}`)

	ca, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("Canonicalize a: %v", err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("Canonicalize b: %v", err)
	}

	if PayloadHash(ca) != PayloadHash(cb) {
		t.Fatal("expected identical payload hash regardless of key order")
	}
}

func TestPayloadHashDiffersOnContentChange(t *testing.T) {
	a := []byte(`{"total": 100}`)
	b := []byte(`{"total": 101}`)

	ca, _ := Canonicalize(a)
	cb, _ := Canonicalize(b)

	if PayloadHash(ca) == PayloadHash(cb) {
		t.Fatal("expected different hash for different content")
	}
}
