// Package digest names the hash functions a scan can use for its per-worker digests.
package digest

import (
	"crypto/md5"  //nolint:gosec // not used for security, only to compare device contents
	"crypto/sha1" //nolint:gosec // default for compatibility with existing digest files
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Algorithm is the name of a hash function
type Algorithm string

const (
	SHA1    Algorithm = "sha1"
	MD5     Algorithm = "md5"
	SHA256  Algorithm = "sha256"
	SHA512  Algorithm = "sha512"
	SHA3256 Algorithm = "sha3-256"
	BLAKE3  Algorithm = "blake3"

	// Default is the algorithm digest files have always been produced with
	Default = SHA1
)

var constructors = map[Algorithm]func() hash.Hash{
	SHA1:    sha1.New,
	MD5:     md5.New,
	SHA256:  sha256.New,
	SHA512:  sha512.New,
	SHA3256: sha3.New256,
	BLAKE3:  func() hash.Hash { return blake3.New() },
}

// Parse looks up an algorithm by name, case-insensitively
func Parse(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := constructors[a]; !ok {
		return "", fmt.Errorf("unknown digest algorithm %q, must be one of %s", name, strings.Join(Names(), ", "))
	}
	return a, nil
}

// Names lists the supported algorithms, sorted
func Names() []string {
	names := make([]string, 0, len(constructors))
	for a := range constructors {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return names
}

// New returns a fresh incremental hash. It panics on an unknown algorithm;
// use Parse to validate names coming from users.
func (a Algorithm) New() hash.Hash {
	c, ok := constructors[a]
	if !ok {
		panic(fmt.Sprintf("unknown digest algorithm %q", string(a)))
	}
	return c()
}

// Size is the length of the digest in bytes
func (a Algorithm) Size() int {
	return a.New().Size()
}

// UnmarshalText lets an Algorithm be read from env vars and flags
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Algorithm) String() string {
	return string(a)
}
