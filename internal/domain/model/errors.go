//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "errors"

// Repository sentinels shared by data implementations and services.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrProjectNotFound = errors.New("project not found")
)
