package utils

import (
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

func passwordCost() int {
	cost, err := strconv.Atoi(os.Getenv("BCRYPT_COST"))
	if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}

func HashPassword(s string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(s), passwordCost())
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
