// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package affine

import "golang.org/x/exp/constraints"

func abs[T constraints.Signed](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// gcd returns the greatest common divisor of |a| and |b|.
// gcd(0, x) is |x|.
func gcd[T constraints.Signed](a, b T) T {
	a, b = abs(a), abs(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// floorDiv rounds the quotient towards negative infinity.
func floorDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ceilDiv rounds the quotient towards positive infinity.
func ceilDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

// floorMod returns a - b*floorDiv(a, b). The result has the sign of b.
func floorMod[T constraints.Signed](a, b T) T {
	return a - b*floorDiv(a, b)
}
