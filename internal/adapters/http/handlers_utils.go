package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, reason := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, reason, err)
	writeError(w, status, reason, reason)
}

// writeDecodeError reports a body that is not valid JSON for the request type.
func writeDecodeError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	const reason = "Request body is not valid"
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, reason, err)
	writeError(w, http.StatusBadRequest, reason, err.Error())
}
