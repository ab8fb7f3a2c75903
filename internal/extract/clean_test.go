package extract

import "testing"

func TestCleanNormalization(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"windows line endings", "a\r\nb\rc", "a\nb\nc"},
		{"horizontal runs", "a  \t  b", "a b"},
		{"line trim", "  a  \n\tb\t", "a\nb"},
		{"blank line collapse", "a\n\n\n\n\nb", "a\n\nb"},
		{"overall trim", "\n\n  hello  \n\n", "hello"},
		{
			"paragraph structure preserved",
			"Clause 1.\n\nClause 2.",
			"Clause 1.\n\nClause 2.",
		},
		{
			"whitespace only lines become one blank line",
			"a\n   \n\t\n  \nb",
			"a\n\nb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"already clean",
		"a  b\r\n\r\n\r\n\r\nc\t d ",
		"  leading\nand   internal\t\truns\n\n\n\n",
		"mixed \r endings \r\n with \t\t tabs",
		"Clause 7.1\n \n \n \nObligations of the Lessee",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q:\n once=%q\ntwice=%q", in, once, twice)
		}
	}
}

func TestCleanRoundTripOfWellFormedText(t *testing.T) {
	// Text with no control characters and no excess whitespace survives
	// cleaning byte for byte.
	in := "This Lease Agreement is made on 1 March 2026.\n\nThe Lessor agrees to lease the premises."
	if got := Clean(in); got != in {
		t.Errorf("well-formed text changed by Clean:\n got=%q\nwant=%q", got, in)
	}
}
