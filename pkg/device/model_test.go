package device

import "testing"

func TestNormalizeHostname(t *testing.T) {
	cases := map[string]string{
		"":         UnknownHostname,
		"   ":      UnknownHostname,
		"printer":  "printer",
		" nas.lan": "nas.lan",
	}
	for in, want := range cases {
		if got := NormalizeHostname(in); got != want {
			t.Fatalf("NormalizeHostname(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecordPredicates(t *testing.T) {
	r := Record{Hostname: "unknown", Status: "UP"}
	if r.HasHostname() {
		t.Fatal("lower-case sentinel should not count as a hostname")
	}
	if !r.HasStatus(StatusUp) {
		t.Fatal("status match should ignore case")
	}
	if r.HasStatus(StatusDown) {
		t.Fatal("UP is not down")
	}
	if !(Record{Hostname: "printer"}).HasHostname() {
		t.Fatal("printer is a hostname")
	}
}
