package ldu

import (
	"fmt"
	"strings"
)

type CommsType uint8

const (
	Blocking CommsType = iota
	NonBlocking
	Scheduled
)

var CommsTypeNames = map[string]CommsType{
	"blocking":    Blocking,
	"nonblocking": NonBlocking,
	"scheduled":   Scheduled,
}

func (ct CommsType) String() string {
	switch ct {
	case Blocking:
		return "blocking"
	case NonBlocking:
		return "nonBlocking"
	case Scheduled:
		return "scheduled"
	}
	return fmt.Sprintf("CommsType(%d)", uint8(ct))
}

// ParseCommsType maps a configuration string onto a CommsType. An empty
// string selects the non-blocking default.
func ParseCommsType(name string) (ct CommsType, err error) {
	if len(name) == 0 {
		return NonBlocking, nil
	}
	var ok bool
	if ct, ok = CommsTypeNames[strings.ToLower(name)]; !ok {
		err = fmt.Errorf("%w: unsupported communication type %q, valid choices are blocking, nonBlocking, scheduled",
			ErrUnknownType, name)
	}
	return
}
