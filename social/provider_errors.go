package social

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ProviderError is a failed provider round trip
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	scope := e.Provider + " " + e.Operation
	switch {
	case e.Description != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	default:
		return fmt.Sprintf("%s failed with status %d", scope, e.Status)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Metadata returns the non empty fields, for error metadata
func (e *ProviderError) Metadata() map[string]any {
	meta := map[string]any{
		"provider":  e.Provider,
		"operation": e.Operation,
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	return meta
}

// wrapProviderError clones base so the sentinel is never mutated, and
// attaches err as the source.
func wrapProviderError(base *goerrors.Error, provider string, err error) error {
	meta := map[string]any{"provider": provider}

	var perr *ProviderError
	if errors.As(err, &perr) {
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	clone := base.Clone()
	clone.Source = err
	return clone.WithMetadata(meta)
}
