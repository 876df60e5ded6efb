package menu

import "errors"

var (
	ErrMenuExists     = errors.New("menu already registered for message")
	ErrRegistryClosed = errors.New("menu registry is closed")
)
