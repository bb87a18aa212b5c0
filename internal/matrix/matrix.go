// Package matrix expands the configured variation axes into the cartesian
// set of verification job specifications.
package matrix

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidAxis is returned when an axis of the matrix is empty. It is a
// configuration-time error: no jobs are created and the whole run aborts.
var ErrInvalidAxis = errors.New("invalid matrix axis")

// AxisSet holds the named dimensions of variation. Axes are independent;
// there is no cross-axis exclusion.
type AxisSet struct {
	OperatingSystems []string
	RuntimeVersions  []string
	InstallMethods   []string
}

// Validate checks that every axis carries at least one value.
func (a AxisSet) Validate() error {
	if len(a.OperatingSystems) == 0 {
		return fmt.Errorf("%w: operating systems axis is empty", ErrInvalidAxis)
	}
	if len(a.RuntimeVersions) == 0 {
		return fmt.Errorf("%w: runtime versions axis is empty", ErrInvalidAxis)
	}
	if len(a.InstallMethods) == 0 {
		return fmt.Errorf("%w: install methods axis is empty", ErrInvalidAxis)
	}
	return nil
}

// JobSpec is one cell of the matrix. It is immutable once created and its
// identity is the (OS, Version, Method) tuple itself.
type JobSpec struct {
	OS      string
	Version string
	Method  string
}

// String renders the spec as "os/version/method", the form used in logs and
// in the rendered run report.
func (s JobSpec) String() string {
	return fmt.Sprintf("%s/%s/%s", s.OS, s.Version, s.Method)
}

// Expand produces the full cartesian product of the axis set, ordered
// lexicographically by (os, version, method) for reproducible reporting.
// Duplicate values within an axis are collapsed first, so every returned
// JobSpec is distinct. Expand has no side effects.
func Expand(a AxisSet) ([]JobSpec, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	oses := dedupeSorted(a.OperatingSystems)
	versions := dedupeSorted(a.RuntimeVersions)
	methods := dedupeSorted(a.InstallMethods)

	specs := make([]JobSpec, 0, len(oses)*len(versions)*len(methods))
	for _, os := range oses {
		for _, version := range versions {
			for _, method := range methods {
				specs = append(specs, JobSpec{OS: os, Version: version, Method: method})
			}
		}
	}
	return specs, nil
}

// dedupeSorted returns a sorted copy of values with duplicates removed.
// Sorting each axis up front makes the nested loops emit specs in
// lexicographic tuple order without a separate sort pass.
func dedupeSorted(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)

	n := 0
	for i, v := range out {
		if i == 0 || out[n-1] != v {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
