package internal

import "golang.org/x/exp/constraints"

// Min, Max and Clamp are generic helpers shared by scoring and banded
// alignment (template package), bin-boundary math (binio package) and
// realignment window sizing (binmerge package), grounded on the
// golang.org/x/exp/constraints ordered-type constraint the teacher
// carries as an indirect dependency without giving it a direct import
// site; this repo gives it one.

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Abs[T constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
