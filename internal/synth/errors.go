package synth

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig matches every configuration failure from the patch factory.
	ErrConfig              = errors.New("invalid patch configuration")
	ErrUnknownKind         = errors.New("unknown patch kind")
	ErrContractViolation   = errors.New("connect target is neither a patch nor a parameter")
	ErrResourceUnavailable = errors.New("resource unavailable")
)

// ConfigError reports a bad factory request. It matches ErrConfig and the
// underlying cause.
type ConfigError struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s patch: %s: %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s patch: %v", e.Kind, e.Err)
}

func (e *ConfigError) Unwrap() []error { return []error{ErrConfig, e.Err} }

// ResourceError reports an external device that could not be opened.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() []error { return []error{ErrResourceUnavailable, e.Err} }
