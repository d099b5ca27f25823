package resolver

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/koustreak/aigis/internal/errs"
)

// Reference points at one tenant connection, or at several custom
// connections that share a schema. It never carries secrets.
type Reference struct {
	UserID        int64   `json:"user_id"`
	ConnectionID  int64   `json:"connection_id,omitempty"`
	ConnectionIDs []int64 `json:"connection_ids,omitempty"`
}

// IDs returns the referenced connection ids, representative first.
func (r Reference) IDs() []int64 {
	if len(r.ConnectionIDs) > 0 {
		return r.ConnectionIDs
	}
	if r.ConnectionID != 0 {
		return []int64{r.ConnectionID}
	}
	return nil
}

// Validate reports a reference that cannot identify any record.
func (r Reference) Validate() error {
	if r.UserID <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "connection reference has no user_id")
	}
	ids := r.IDs()
	if len(ids) == 0 {
		return errs.New(errs.ErrKindInvalidInput, "connection reference has no connection_id")
	}
	for _, id := range ids {
		if id <= 0 {
			return errs.Newf(errs.ErrKindInvalidInput, "invalid connection id %d", id)
		}
	}
	return nil
}

// ReferenceFromMap accepts the loose shapes agent state carries:
// {user_id, connection_id}, the legacy {user_id, id, ...full record} and
// {user_id, connection_ids: [...]}. Numbers may arrive as ints, floats or
// strings.
func ReferenceFromMap(m map[string]any) (Reference, error) {
	if m == nil {
		return Reference{}, errs.New(errs.ErrKindInvalidInput, "connection reference is empty")
	}

	var ref Reference
	var err error
	if ref.UserID, err = toInt64(m["user_id"]); err != nil {
		return Reference{}, errs.Wrap(errs.ErrKindInvalidInput, "invalid user_id", err)
	}

	switch raw := m["connection_ids"].(type) {
	case nil:
	case []int64:
		ref.ConnectionIDs = append([]int64(nil), raw...)
	case []any:
		for _, v := range raw {
			id, err := toInt64(v)
			if err != nil {
				return Reference{}, errs.Wrap(errs.ErrKindInvalidInput, "invalid connection_ids entry", err)
			}
			ref.ConnectionIDs = append(ref.ConnectionIDs, id)
		}
	default:
		return Reference{}, errs.Newf(errs.ErrKindInvalidInput, "connection_ids must be a list, got %T", raw)
	}

	for _, key := range []string{"connection_id", "id"} {
		if v, ok := m[key]; ok && v != nil {
			if ref.ConnectionID, err = toInt64(v); err != nil {
				return Reference{}, errs.Wrap(errs.ErrKindInvalidInput, "invalid "+key, err)
			}
			break
		}
	}

	if err := ref.Validate(); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errs.Newf(errs.ErrKindInvalidInput, "%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case nil:
		return 0, errs.New(errs.ErrKindInvalidInput, "missing value")
	default:
		return 0, errs.Newf(errs.ErrKindInvalidInput, "unsupported id type %T", v)
	}
}
