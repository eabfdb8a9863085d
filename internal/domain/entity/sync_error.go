package entity

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies failures raised by adapters and the price oracle.
type ErrorKind int

const (
	KindConfig ErrorKind = iota + 1
	KindNetwork
	KindTimeout
	KindRateLimit
	KindParse
	KindValidation
)

var (
	ErrConfig     = errors.New("configuration error")
	ErrNetwork    = errors.New("network error")
	ErrTimeout    = errors.New("timeout")
	ErrRateLimit  = errors.New("rate limited")
	ErrParse      = errors.New("parse error")
	ErrValidation = errors.New("validation error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindNetwork:
		return ErrNetwork
	case KindTimeout:
		return ErrTimeout
	case KindRateLimit:
		return ErrRateLimit
	case KindParse:
		return ErrParse
	case KindValidation:
		return ErrValidation
	}
	return nil
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown error"
}

// SyncError carries the kind, the failing operation and the chain it concerned.
type SyncError struct {
	Kind  ErrorKind
	Op    string
	Chain Chain
	Err   error
}

func (e *SyncError) Error() string {
	prefix := e.Op
	if e.Chain != "" {
		prefix = fmt.Sprintf("%s %s", e.Chain, e.Op)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *SyncError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// NewSyncError builds a SyncError. If err already is a SyncError its kind is kept.
func NewSyncError(kind ErrorKind, chain Chain, op string, err error) error {
	var se *SyncError
	if errors.As(err, &se) {
		kind = se.Kind
	}
	return &SyncError{Kind: kind, Op: op, Chain: chain, Err: err}
}

// ClassifyTransportError maps a transport failure to Timeout or Network.
func ClassifyTransportError(chain Chain, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &SyncError{Kind: KindTimeout, Op: op, Chain: chain, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &SyncError{Kind: KindTimeout, Op: op, Chain: chain, Err: err}
	}
	return &SyncError{Kind: KindNetwork, Op: op, Chain: chain, Err: err}
}

// KindOf returns the kind of err, or zero when err is not a SyncError.
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
