package password

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength         = 16
)

// legacyArgon2 verifies credentials imported from the previous argon2id store.
// A match always asks for a rehash so accounts converge on bcrypt.
type legacyArgon2 struct{}

func (legacyArgon2) scheme() Scheme { return SchemeArgon2id }

func (legacyArgon2) accepts(stored string) bool {
	return strings.HasPrefix(stored, "$"+algorithmID+"$")
}

func (legacyArgon2) verify(plaintext, stored string) (bool, bool, error) {
	parsed, err := parsePHC(stored)
	if err != nil {
		return false, false, err
	}

	computed := argon2.IDKey(
		[]byte(plaintext),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.hash)),
	)
	ok := subtle.ConstantTimeCompare(computed, parsed.hash) == 1
	return ok, ok, nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// parsePHC decodes $argon2id$v=19$m=<kb>,t=<n>,p=<n>$<salt>$<hash>.
func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	out := &phc{}
	if err := out.parseParams(parts[3]); err != nil {
		return nil, err
	}

	out.salt, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(parts[4], "="))
	if err != nil || len(out.salt) < minSaltLength {
		return nil, errors.New("invalid salt")
	}
	out.hash, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(parts[5], "="))
	if err != nil || len(out.hash) == 0 {
		return nil, errors.New("invalid hash")
	}

	return out, nil
}

func (p *phc) parseParams(part string) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return errors.New("invalid parameter format")
	}

	var seen int
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return errors.New("invalid parameter entry")
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return errors.New("invalid memory parameter")
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return errors.New("invalid time parameter")
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return errors.New("invalid parallelism parameter")
			}
			p.parallelism = uint8(v)
		default:
			return errors.New("unsupported parameter")
		}
		seen++
	}

	if seen != 3 || p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return errors.New("missing parameters")
	}
	return nil
}
