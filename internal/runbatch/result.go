// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"errors"
	"slices"
)

// ErrResultChildrenHasError is set on a batch result when any child failed.
var ErrResultChildrenHasError = errors.New("result has children with errors")

// ResultStatus summarises how a runnable finished.
type ResultStatus int

const (
	// ResultStatusUnknown is the zero value.
	ResultStatusUnknown ResultStatus = iota
	// ResultStatusSuccess means the runnable exited with a success code.
	ResultStatusSuccess
	// ResultStatusError means the runnable failed or could not start.
	ResultStatusError
)

// Result represents the outcome of running a command or batch.
type Result struct {
	ExitCode int          // Exit code of the command or batch
	Error    error        // Error, if any
	StdOut   []byte       // Output from the command(s)
	StdErr   []byte       // Error output from the command(s)
	Label    string       // Label of the command or batch
	Status   ResultStatus // Summary status
	Children Results      // Nested results for batches
}

// Results is a slice of Result pointers, used to represent multiple results.
type Results []*Result

// HasError reports whether any result, or any nested child, failed.
func (r Results) HasError() bool {
	for v := range slices.Values(r) {
		if v.Error != nil || v.ExitCode != 0 {
			return true
		}

		if v.Children.HasError() {
			return true
		}
	}

	return false
}

// Leaves returns the results of the individual commands, flattening batches.
func (r Results) Leaves() Results {
	var leaves Results

	for _, v := range r {
		if len(v.Children) > 0 {
			leaves = append(leaves, v.Children.Leaves()...)
			continue
		}

		leaves = append(leaves, v)
	}

	return leaves
}

// MaxExitCode returns the highest exit code among the leaf results, starting from floor.
func (r Results) MaxExitCode(floor int) int {
	code := floor

	for _, v := range r.Leaves() {
		code = max(code, v.ExitCode)
	}

	return code
}
