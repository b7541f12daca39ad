package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/sirupsen/logrus"

	"booksys/internal/domain"
	"booksys/internal/table"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Warn("failed to encode JSON")
	}
}

func writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		logrus.WithError(err).Warn("failed to encode error response")
	}
}

// writeServiceError maps a service error to its HTTP status
func writeServiceError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, msg string, err error) {
	var (
		verr  *domain.ValidationError
		kerr  *table.KeysValidationError
		tmerr *table.TypeMismatchError
	)

	switch {
	case errors.As(err, &verr), errors.As(err, &kerr), errors.As(err, &tmerr):
		writeError(w, "Invalid request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, "Conflict", err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrSessionInvalid):
		writeError(w, "Unauthorized", err.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, "Not found", err.Error(), http.StatusNotFound)
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error(msg)
		writeError(w, msg, "", http.StatusInternalServerError)
	}
}

// readBody returns the request body, trimmed, capped at maxBodyBytes
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(data), nil
}

// decodeStrict decodes data into v, rejecting unknown fields
func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// decodeOneOrMany accepts a single JSON object or an array of them. single
// reports which form was sent.
func decodeOneOrMany[T any](data []byte) (items []T, single bool, err error) {
	if len(data) == 0 {
		return nil, false, errors.New("empty request body")
	}

	if data[0] == '[' {
		if err := decodeStrict(data, &items); err != nil {
			return nil, false, err
		}
		return items, false, nil
	}

	var item T
	if err := decodeStrict(data, &item); err != nil {
		return nil, false, err
	}
	return []T{item}, true, nil
}

// decodeIDs accepts 5, [5, 6], [{"id": 5}], {"ids": [5, 6]} or {"id": 5}
func decodeIDs(data []byte) ([]int64, error) {
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}

	switch data[0] {
	case '[':
		var ids []int64
		if err := json.Unmarshal(data, &ids); err == nil {
			return ids, nil
		}
		var objs []struct {
			ID *int64 `json:"id"`
		}
		if err := json.Unmarshal(data, &objs); err != nil {
			return nil, fmt.Errorf("expected a list of ids or objects with an id: %w", err)
		}
		ids = make([]int64, 0, len(objs))
		for i, o := range objs {
			if o.ID == nil {
				return nil, fmt.Errorf("item %d has no id", i)
			}
			ids = append(ids, *o.ID)
		}
		return ids, nil

	case '{':
		var obj struct {
			ID  *int64  `json:"id"`
			IDs []int64 `json:"ids"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		if obj.IDs != nil {
			return obj.IDs, nil
		}
		if obj.ID != nil {
			return []int64{*obj.ID}, nil
		}
		return nil, errors.New(`object needs "id" or "ids"`)

	default:
		var id int64
		if err := json.Unmarshal(data, &id); err != nil {
			return nil, fmt.Errorf("expected an id: %w", err)
		}
		return []int64{id}, nil
	}
}

// remoteHost is the address of the connected peer without its port
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientIP returns the originating client address. X-Forwarded-For and
// X-Real-IP are only honoured when the peer is a trusted proxy; the
// forwarded chain is walked from the right, skipping trusted hops.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	remote := remoteHost(r)
	if !isTrustedProxy(remote, trusted) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if i == 0 || !isTrustedProxy(hop, trusted) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return remote
}

func isTrustedProxy(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
