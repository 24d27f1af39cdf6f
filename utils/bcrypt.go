package utils

import "golang.org/x/crypto/bcrypt"

// HashCost is lowered by tests; production keeps bcrypt's default.
var HashCost = bcrypt.DefaultCost

func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), HashCost)
}

func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}
