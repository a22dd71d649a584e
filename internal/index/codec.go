// Package index converts between the decimal OST indexes used by the
// services and the fixed-width hexadecimal encoding used by the Lustre
// tools, and expands compact range specifications into index sets.
package index

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	lfserrors "github.com/GSI-HPC/lfs-utils/internal/errors"
	"github.com/GSI-HPC/lfs-utils/internal/model"
)

var hexToken = regexp.MustCompile(`[0-9a-fA-F]{4}`)

// ToHex converts a decimal OST index to its 4-digit lowercase hex
// encoding, e.g. 28 -> "001c".
func ToHex(idx int) (string, error) {
	if !model.ValidIndex(idx) {
		return "", lfserrors.Validation(
			"OST index %d invalid, must be in range between %d and %d",
			idx, model.MinOSTIndex, model.MaxOSTIndex)
	}
	return fmt.Sprintf("%04x", idx), nil
}

// FromHex converts a 4-digit hex encoding back to the decimal OST index.
func FromHex(hexStr string) (int, error) {
	if !hexToken.MatchString(hexStr) || len(hexStr) != 4 {
		return 0, lfserrors.Validation("invalid hex OST index %q, expected 4 hex digits", hexStr)
	}
	idx, err := strconv.ParseUint(hexStr, 16, 32)
	if err != nil {
		return 0, lfserrors.Validation("invalid hex OST index %q: %v", hexStr, err)
	}
	return int(idx), nil
}

// ExpandRange expands a comma-separated range specification of decimal
// indexes, e.g. "0-9,12,87", into the deduplicated ascending set of all
// covered indexes. A malformed token fails the whole expansion.
func ExpandRange(spec string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, lfserrors.Validation("empty range specification")
	}

	seen := make(map[int]struct{})

	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)

		lo, hi, err := parseToken(token)
		if err != nil {
			return nil, err
		}

		for idx := lo; idx <= hi; idx++ {
			seen[idx] = struct{}{}
		}
	}

	indexes := make([]int, 0, len(seen))
	for idx := range seen {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	return indexes, nil
}

// ExpandHexRange expands a range specification whose tokens are 4-digit
// hex encodings, e.g. "00FF, ff00-ff10", by rewriting each hex token to
// its decimal value and expanding the result with ExpandRange.
func ExpandHexRange(spec string) ([]int, error) {
	rewritten := hexToken.ReplaceAllStringFunc(spec, func(token string) string {
		idx, _ := strconv.ParseUint(token, 16, 32)
		return strconv.FormatUint(idx, 10)
	})
	return ExpandRange(rewritten)
}

func parseToken(token string) (lo, hi int, err error) {
	if token == "" {
		return 0, 0, lfserrors.Validation("empty token in range specification")
	}

	loStr, hiStr, isRange := strings.Cut(token, "-")
	if !isRange {
		hiStr = loStr
	}

	lo, err = parseIndex(loStr)
	if err != nil {
		return 0, 0, err
	}

	hi, err = parseIndex(hiStr)
	if err != nil {
		return 0, 0, err
	}

	if lo > hi {
		return 0, 0, lfserrors.Validation("descending interval %q in range specification", token)
	}

	return lo, hi, nil
}

func parseIndex(s string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, lfserrors.Validation("invalid index %q in range specification", s)
	}
	if !model.ValidIndex(idx) {
		return 0, lfserrors.Validation(
			"OST index %d invalid, must be in range between %d and %d",
			idx, model.MinOSTIndex, model.MaxOSTIndex)
	}
	return idx, nil
}
