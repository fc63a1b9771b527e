package carve

import "testing"

func TestParseCRFSingleValue(t *testing.T) {
	sd, hd, uhd, err := ParseCRF(" 27 ")
	if err != nil {
		t.Fatalf("ParseCRF: %v", err)
	}
	if sd != 27 || hd != 27 || uhd != 27 {
		t.Errorf("single value should apply to every tier, got %d/%d/%d", sd, hd, uhd)
	}
}

func TestParseCRFTriple(t *testing.T) {
	sd, hd, uhd, err := ParseCRF("25, 27, 29")
	if err != nil {
		t.Fatalf("ParseCRF: %v", err)
	}
	if sd != 25 || hd != 27 || uhd != 29 {
		t.Errorf("triple = %d/%d/%d, want 25/27/29", sd, hd, uhd)
	}
}

func TestParseCRFBounds(t *testing.T) {
	for _, input := range []string{"0", "63"} {
		if _, _, _, err := ParseCRF(input); err != nil {
			t.Errorf("ParseCRF(%q) rejected a legal bound: %v", input, err)
		}
	}
}

func TestParseCRFRejects(t *testing.T) {
	bad := []string{
		"",           // nothing
		"   ",        // whitespace
		"64",         // over the SVT ceiling
		"-1",         // negative
		"abc",        // non-numeric
		"25,27",      // two tiers
		"25,27,29,31", // four tiers
		"abc,27,29",  // bad SD
		"25,abc,29",  // bad HD
		"25,27,abc",  // bad UHD
		"64,27,29",   // out-of-range tier
	}
	for _, input := range bad {
		if _, _, _, err := ParseCRF(input); err == nil {
			t.Errorf("ParseCRF(%q) unexpectedly succeeded", input)
		}
	}
}
