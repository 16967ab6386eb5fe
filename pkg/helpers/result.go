package helpers

// Result carries either a value or an error over a channel. Fragment sources
// yield one Result per fragment and terminate with an error Result on failure.
type Result[T any] struct {
	value T
	err   error
}

func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{
		value: value,
		err:   err,
	}
}

func NewValueResult[T any](value T) Result[T] {
	return Result[T]{
		value: value,
	}
}

func NewErrorResult[T any](err error) Result[T] {
	return Result[T]{
		err: err,
	}
}

func (r Result[T]) Value() (T, error) {
	return r.value, r.err
}

func (r Result[T]) Error() error {
	return r.err
}

func (r Result[T]) Ok() bool {
	return r.err == nil
}

func (r Result[T]) ValueOr(v T) T {
	if r.err != nil {
		return v
	}
	return r.value
}

// ChannelFromSlice returns a closed, buffered channel yielding the given values
// in order, optionally followed by a terminal error.
func ChannelFromSlice[T any](values []T, err error) <-chan Result[T] {
	n := len(values)
	if err != nil {
		n++
	}
	c := make(chan Result[T], n)
	for _, v := range values {
		c <- NewValueResult(v)
	}
	if err != nil {
		c <- NewErrorResult[T](err)
	}
	close(c)
	return c
}

// Drain reads a channel until it closes and returns all values, stopping at
// the first error.
func Drain[T any](c <-chan Result[T]) ([]T, error) {
	var ret []T
	for r := range c {
		v, err := r.Value()
		if err != nil {
			return ret, err
		}
		ret = append(ret, v)
	}
	return ret, nil
}
