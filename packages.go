package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tournevent/upsrate/pkg/shipper"
	"github.com/tournevent/upsrate/pkg/shipper/ups"
)

// parsePackages parses --package values of the form LxWxH:WEIGHT.
func parsePackages(values []string) ([]ups.Package, error) {
	pkgs := make([]ups.Package, 0, len(values))
	for _, v := range values {
		pkg, err := parsePackage(v)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

func parsePackage(v string) (ups.Package, error) {
	dims, weight, ok := strings.Cut(v, ":")
	if !ok {
		return ups.Package{}, fmt.Errorf("%w: %q is not LxWxH:WEIGHT", shipper.ErrInvalidPackage, v)
	}

	parts := strings.Split(strings.ToLower(dims), "x")
	if len(parts) != 3 {
		return ups.Package{}, fmt.Errorf("%w: %q needs three dimensions", shipper.ErrInvalidPackage, v)
	}

	nums := make([]float64, 0, 4)
	for _, s := range append(parts, weight) {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return ups.Package{}, fmt.Errorf("%w: %q: %v", shipper.ErrInvalidPackage, v, err)
		}
		nums = append(nums, n)
	}

	return ups.Package{Length: nums[0], Width: nums[1], Height: nums[2], Weight: nums[3]}, nil
}
