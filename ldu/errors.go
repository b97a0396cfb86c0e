package ldu

import "errors"

var (
	// ErrTopology marks array sizes or indices that disagree with the addressing.
	ErrTopology = errors.New("ldu: topology mismatch")
	// ErrUnknownType marks a configuration naming something that is not registered.
	ErrUnknownType = errors.New("ldu: unknown type")
)
