// Package password hashes and verifies shared secrets such as the court
// callback key.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt cost factor
var Cost = 12

// Hash hashes a secret using bcrypt
func Hash(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), Cost)
	return string(bytes), err
}

// Verify compares a secret with its hash
func Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
