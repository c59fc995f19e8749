package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the work factor the stored hashes were created with.
const bcryptCost = 10

func HashPassword(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), bcryptCost)
	return string(b), err
}

func CheckPassword(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
