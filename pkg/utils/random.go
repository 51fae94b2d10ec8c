package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomAlnum returns n characters drawn from [A-Za-z0-9] using crypto/rand.
func RandomAlnum(n int) (string, error) {
	return gonanoid.Generate(alnum, n)
}
