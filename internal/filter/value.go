package filter

import (
	"fmt"
	"time"
)

// normalize converts a predicate or row value to its comparable storage
// form: string, int64 or nil. Booleans become 0/1 and times become unix
// nanoseconds, matching how the store persists them.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case *string:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case time.Time:
		return x.UnixNano(), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
