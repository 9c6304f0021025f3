package twitterapi

import (
	"errors"
	"fmt"
)

// Kind phân loại lỗi của một API call
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAuthFailure
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAuthFailure:
		return "auth_failure"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// CallError là kết quả được phân loại của một API call thất bại
type CallError struct {
	Method     string
	Kind       Kind
	StatusCode int
}

func (e *CallError) Error() string {
	return fmt.Sprintf("twitter api call %s failed: %s (status %d)", e.Method, e.Kind, e.StatusCode)
}

func IsNotFound(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Kind == KindNotFound
}

func IsAuthFailure(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Kind == KindAuthFailure
}

func IsRateLimited(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Kind == KindRateLimited
}
