package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

var (
	// ErrUnconfigured means no remote collection was configured.
	ErrUnconfigured = errors.New("remote store not configured")
	// ErrUnavailable covers transport failures and any unexpected status.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrNotFound means the addressed task does not exist remotely.
	ErrNotFound = errors.New("task not found")
)

// classify maps an SDK error onto the package sentinels. The original error
// stays reachable through errors.As.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if statusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

func errorCode(err error) string {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.ErrorCode
	}
	return ""
}
