package api

// ListResult is the outcome of a list read. It is exactly one of
// Success, LegacyList or Failure; callers match it with a type switch.
type ListResult[T any] interface {
	items() []T
}

// Success is an envelope carrying items and the server-side total
type Success[T any] struct {
	Items []T
	Total int
}

// LegacyList is a bare array response; its length is the total
type LegacyList[T any] struct {
	Items []T
}

// Failure is a transport error, a non-success code or an unexpected shape
type Failure[T any] struct {
	Err error
}

func (r Success[T]) items() []T    { return r.Items }
func (r LegacyList[T]) items() []T { return r.Items }
func (r Failure[T]) items() []T    { return nil }

// Items returns the items of a result, nil for a failure
func Items[T any](r ListResult[T]) []T {
	if r == nil {
		return nil
	}
	return r.items()
}

// Total returns the total of a result: the server total, the length of a
// legacy list, or zero for a failure
func Total[T any](r ListResult[T]) int {
	switch v := r.(type) {
	case Success[T]:
		return v.Total
	case LegacyList[T]:
		return len(v.Items)
	default:
		return 0
	}
}

// Err returns the error of a failed result
func Err[T any](r ListResult[T]) error {
	if f, ok := r.(Failure[T]); ok {
		return f.Err
	}
	return nil
}
