package digest_test

import (
	"encoding/hex"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/diskfs/go-blockhash/digest"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		expected digest.Algorithm
		err      bool
	}{
		{"sha1", digest.SHA1, false},
		{"SHA256", digest.SHA256, false},
		{" sha3-256 ", digest.SHA3256, false},
		{"blake3", digest.BLAKE3, false},
		{"md5", digest.MD5, false},
		{"sha512", digest.SHA512, false},
		{"crc32", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := digest.Parse(tt.name)
			if (err != nil) != tt.err {
				t.Fatalf("Parse(%q): unexpected error state: %v", tt.name, err)
			}
			if a != tt.expected {
				t.Errorf("Parse(%q): got %q, expected %q", tt.name, a, tt.expected)
			}
		})
	}
}

func TestSizes(t *testing.T) {
	expected := map[digest.Algorithm]int{
		digest.SHA1:    20,
		digest.MD5:     16,
		digest.SHA256:  32,
		digest.SHA512:  64,
		digest.SHA3256: 32,
		digest.BLAKE3:  32,
	}
	actual := map[digest.Algorithm]int{}
	for _, name := range digest.Names() {
		a, err := digest.Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", name, err)
		}
		actual[a] = a.Size()
	}
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestNew(t *testing.T) {
	h := digest.Default.New()
	_, _ = h.Write([]byte("abc"))
	got := hex.EncodeToString(h.Sum(nil))
	if got != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("sha1(abc) = %s", got)
	}
}

func TestUnmarshalText(t *testing.T) {
	var a digest.Algorithm
	if err := a.UnmarshalText([]byte("SHA512")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != digest.SHA512 {
		t.Errorf("got %q", a)
	}
	if err := a.UnmarshalText([]byte("nope")); err == nil {
		t.Errorf("expected error for unknown algorithm")
	}
}
