package pipeline

import (
	"fmt"
	"reflect"
)

// Item is the type-erased capsule that carries one value across a stage
// boundary. Typed Senders wrap and typed Receivers unwrap, so stage code never
// handles Items directly.
type Item struct {
	v interface{}
}

// Wrap puts v in a capsule.
func Wrap[T any](v T) Item {
	return Item{v: v}
}

// Unwrap returns the value held by it as a T. A capsule holding any other type
// is a broken pipeline contract and Unwrap panics with a *ContractError.
func Unwrap[T any](it Item) T {
	if v, ok := it.v.(T); ok {
		return v
	}
	var zero T
	if it.v == nil && reflect.TypeFor[T]().Kind() == reflect.Interface {
		return zero
	}
	panic(&ContractError{
		Expected: reflect.TypeFor[T]().String(),
		Actual:   fmt.Sprintf("%T", it.v),
	})
}

// Value returns the raw payload.
func (it Item) Value() interface{} {
	return it.v
}

func (it Item) String() string {
	return fmt.Sprintf("Item(%v)", it.v)
}

// ContractError reports a capsule whose payload type differs from what the
// consuming stage was built for. It is a programming error: stages never
// recover from it.
type ContractError struct {
	Expected string
	Actual   string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("pipeline: item holds %s, stage expects %s", e.Actual, e.Expected)
}
