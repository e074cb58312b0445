package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a passenger's password with bcrypt at the
// configured cost (BCRYPT_COST). A cost below the bcrypt minimum
// falls back to the library default rather than failing.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
