package password

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt work factor used when Config.Cost is zero.
	DefaultCost = 12
	// MinCost is the lowest accepted bcrypt work factor.
	MinCost = 10
	// MaxCost is the highest accepted bcrypt work factor.
	MaxCost = 14

	maxPasswordBytes = 72
)

var bcryptFormat = regexp.MustCompile(`^\$2[aby]\$\d{2}\$[A-Za-z0-9./]{53}$`)

// ErrPasswordTooLong is returned by Hash when the password cannot be represented by bcrypt.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Scheme identifies which stored representation matched during verification.
type Scheme uint8

const (
	// SchemeUnknown is reported when no strategy matched.
	SchemeUnknown Scheme = iota
	// SchemeBcrypt is a bcrypt hash of the bare password.
	SchemeBcrypt
	// SchemeBcryptPeppered is a bcrypt hash of password+pepper.
	SchemeBcryptPeppered
	// SchemeArgon2id is a legacy argon2id PHC string.
	SchemeArgon2id
	// SchemePlaintext is a legacy unhashed credential.
	SchemePlaintext
)

func (s Scheme) String() string {
	switch s {
	case SchemeBcrypt:
		return "bcrypt"
	case SchemeBcryptPeppered:
		return "bcrypt_peppered"
	case SchemeArgon2id:
		return "argon2id"
	case SchemePlaintext:
		return "plaintext"
	default:
		return "unknown"
	}
}

// Config controls hashing cost and the legacy pepper.
type Config struct {
	// Cost is the bcrypt work factor for new hashes. Zero selects DefaultCost.
	Cost int
	// Pepper is only consulted to verify hashes written before pepper removal.
	// New hashes never include it.
	Pepper string
}

// Result reports the outcome of Verify.
type Result struct {
	Valid        bool
	ShouldRehash bool
	Scheme       Scheme
}

// strategy is one stored-credential representation that Verify can recognise.
type strategy interface {
	scheme() Scheme
	accepts(stored string) bool
	verify(plaintext, stored string) (ok bool, rehash bool, err error)
}

// Verifier checks passwords against any supported stored representation and
// tells the caller when the stored value should be replaced by a fresh bcrypt hash.
//
// Verifier is safe for concurrent use.
type Verifier struct {
	cost       int
	strategies []strategy
}

// NewVerifier validates cfg and builds the ordered strategy list.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Cost == 0 {
		cfg.Cost = DefaultCost
	}
	if cfg.Cost < MinCost || cfg.Cost > MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", MinCost, MaxCost)
	}

	strategies := []strategy{
		legacyArgon2{},
		bcryptPlain{cost: cfg.Cost},
	}
	if cfg.Pepper != "" {
		strategies = append(strategies, bcryptPeppered{pepper: cfg.Pepper})
	}
	strategies = append(strategies, legacyPlaintext{})

	return &Verifier{cost: cfg.Cost, strategies: strategies}, nil
}

// Verify walks the strategies in order and stops at the first match.
//
// An empty stored value never verifies. Errors are returned only for malformed
// hashes that claim a known format.
func (v *Verifier) Verify(plaintext, stored string) (Result, error) {
	if stored == "" {
		return Result{}, nil
	}

	for _, s := range v.strategies {
		if !s.accepts(stored) {
			continue
		}
		ok, rehash, err := s.verify(plaintext, stored)
		if err != nil {
			return Result{}, err
		}
		if ok {
			return Result{Valid: true, ShouldRehash: rehash, Scheme: s.scheme()}, nil
		}
	}

	return Result{}, nil
}

// Hash produces a bcrypt hash at the configured cost. No pepper is applied.
func (v *Verifier) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Cost returns the configured work factor.
func (v *Verifier) Cost() int {
	return v.cost
}

// IsBcrypt reports whether stored looks like a bcrypt hash.
func IsBcrypt(stored string) bool {
	return bcryptFormat.MatchString(stored)
}

type bcryptPlain struct {
	cost int
}

func (bcryptPlain) scheme() Scheme { return SchemeBcrypt }

func (bcryptPlain) accepts(stored string) bool { return IsBcrypt(stored) }

func (b bcryptPlain) verify(plaintext, stored string) (bool, bool, error) {
	ok, err := compareBcrypt(stored, plaintext)
	if err != nil || !ok {
		return false, false, err
	}
	cost, err := bcrypt.Cost([]byte(stored))
	if err != nil {
		return false, false, err
	}
	return true, cost != b.cost, nil
}

type bcryptPeppered struct {
	pepper string
}

func (bcryptPeppered) scheme() Scheme { return SchemeBcryptPeppered }

func (bcryptPeppered) accepts(stored string) bool { return IsBcrypt(stored) }

func (b bcryptPeppered) verify(plaintext, stored string) (bool, bool, error) {
	ok, err := compareBcrypt(stored, plaintext+b.pepper)
	if err != nil || !ok {
		return false, false, err
	}
	return true, true, nil
}

type legacyPlaintext struct{}

func (legacyPlaintext) scheme() Scheme { return SchemePlaintext }

func (legacyPlaintext) accepts(stored string) bool {
	return !IsBcrypt(stored) && !strings.HasPrefix(stored, "$"+algorithmID+"$")
}

func (legacyPlaintext) verify(plaintext, stored string) (bool, bool, error) {
	ok := subtle.ConstantTimeCompare([]byte(plaintext), []byte(stored)) == 1
	return ok, ok, nil
}

func compareBcrypt(stored, candidate string) (bool, error) {
	// bcrypt only reads the first 72 bytes; longer input would collide.
	if len(candidate) > maxPasswordBytes {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
