package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)
