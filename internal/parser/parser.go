// Package parser interprets the textual output of the Lustre
// administration tools into structured records.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	lfserrors "github.com/GSI-HPC/lfs-utils/internal/errors"
	"github.com/GSI-HPC/lfs-utils/internal/model"
)

const (
	// StripeFieldCount is the stripe count field of `lfs getstripe -y`
	StripeFieldCount = "lmm_stripe_count"
	// StripeFieldOffset is the stripe offset field of `lfs getstripe -y`
	StripeFieldOffset = "lmm_stripe_offset"

	// ComponentStateActive is the status word of a healthy component
	ComponentStateActive = "active"
)

// Parser holds the precompiled patterns for the tool output grammars.
// Construct it once and share it across call sites.
type Parser struct {
	componentState *regexp.Regexp
	fillLevel      *regexp.Regexp
	connUUID       *regexp.Regexp
	logger         *zap.Logger
}

// NewParser creates a parser logging skipped lines to the given logger.
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{
		componentState: regexp.MustCompile(`^(.+)-((OST|MDT)[0-9a-fA-F]+)-[a-z0-9-]+\s+(.+)\.$`),
		fillLevel:      regexp.MustCompile(`(\d{1,3})%.*\[OST:([0-9]{1,5})\]`),
		connUUID:       regexp.MustCompile(`osc\..*-OST([0-9a-fA-F]{4})-osc-[0-9a-fA-F]{16}\.ost_conn_uuid=([\d.]+)@`),
		logger:         logger,
	}
}

// ComponentStates parses `lfs check osts` style output into one
// component collection per filesystem target. Lines not matching the
// grammar are logged and skipped; an unrecognized component type aborts
// the parse.
func (p *Parser) ComponentStates(output string) (map[string]*model.ComponentCollection, error) {
	collections := make(map[string]*model.ComponentCollection)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		match := p.componentState.FindStringSubmatch(line)
		if match == nil {
			p.logger.Warn("No pattern match for component state line", zap.String("line", line))
			continue
		}

		target := match[1]
		name := match[2]
		compType := model.ComponentType(match[3])
		state := match[4]

		idx, err := componentIndex(name)
		if err != nil {
			return nil, err
		}

		collection, ok := collections[target]
		if !ok {
			collection = model.NewComponentCollection()
			collections[target] = collection
		}

		component := &model.ComponentState{
			Target: target,
			Name:   name,
			Type:   compType,
			State:  state,
			Active: state == ComponentStateActive,
			Index:  idx,
		}

		switch compType {
		case model.ComponentTypeOST:
			collection.OSTs[idx] = component
		case model.ComponentTypeMDT:
			collection.MDTs[idx] = component
		default:
			return nil, lfserrors.Parse("unknown component type %q in name %q", compType, name)
		}
	}

	return collections, nil
}

// StripeInfo parses the YAML document produced by
// `lfs getstripe -c -i -y`. Both the stripe count and the stripe offset
// field are required.
func (p *Parser) StripeInfo(filename, output string) (*model.StripeInfo, error) {
	fields := make(map[string]interface{})

	if err := yaml.Unmarshal([]byte(output), &fields); err != nil {
		return nil, lfserrors.Parse("malformed stripe info for %s: %v", filename, err)
	}

	count, err := stripeField(fields, StripeFieldCount, output)
	if err != nil {
		return nil, err
	}

	offset, err := stripeField(fields, StripeFieldOffset, output)
	if err != nil {
		return nil, err
	}

	return &model.StripeInfo{Filename: filename, Count: count, Index: offset}, nil
}

// FillLevels parses `lfs df` style output into a map of OST index to
// fill percentage. Lines without a match are expected (headers, MDT
// rows) and silently ignored, but an empty result is an error.
func (p *Parser) FillLevels(output string) (map[int]int, error) {
	fillLevels := make(map[int]int)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		match := p.fillLevel.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		pct, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, lfserrors.Parse("invalid fill percentage %q: %v", match[1], err)
		}

		idx, err := strconv.Atoi(match[2])
		if err != nil {
			return nil, lfserrors.Parse("invalid OST index %q: %v", match[2], err)
		}

		fillLevels[idx] = pct
	}

	if len(fillLevels) == 0 {
		return nil, lfserrors.Parse("no OST fill levels found in output")
	}

	return fillLevels, nil
}

// ConnUUID parses the connection identifier of a single OST from
// `lctl get_param` output, returning its address.
func (p *Parser) ConnUUID(output string) (string, error) {
	match := p.connUUID.FindStringSubmatch(output)
	if match == nil {
		return "", lfserrors.Parse("no ost_conn_uuid match in output")
	}
	return match[2], nil
}

// ConnUUIDMap parses the connection identifiers of all OSTs of a
// filesystem into a map of OST index to address. Every non-blank line
// must match, and an empty map is an error.
func (p *Parser) ConnUUIDMap(output string) (map[int]string, error) {
	connUUIDs := make(map[int]string)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		match := p.connUUID.FindStringSubmatch(line)
		if match == nil {
			return nil, lfserrors.Parse("no ost_conn_uuid match for line: %s", line)
		}

		idx, err := strconv.ParseUint(match[1], 16, 32)
		if err != nil {
			return nil, lfserrors.Parse("invalid hex OST index %q: %v", match[1], err)
		}

		connUUIDs[int(idx)] = match[2]
	}

	if len(connUUIDs) == 0 {
		return nil, lfserrors.Parse("no ost_conn_uuid entries found in output")
	}

	return connUUIDs, nil
}

// stripeField extracts a required integer field from the unmarshalled
// stripe document.
func stripeField(fields map[string]interface{}, key, output string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, lfserrors.Parse("field %s not found in stripe info: %s", key, output)
	}

	value, ok := raw.(int)
	if !ok {
		return 0, lfserrors.Parse("field %s is not an integer in stripe info: %s", key, output)
	}

	return value, nil
}

// componentIndex decodes the decimal index from the hex suffix of a
// component name such as "OST01ac".
func componentIndex(name string) (int, error) {
	if len(name) <= 3 {
		return 0, lfserrors.Parse("component name %q too short to carry an index", name)
	}

	idx, err := strconv.ParseUint(name[3:], 16, 32)
	if err != nil {
		return 0, lfserrors.Parse("no index decodable from component name %q: %v", name, err)
	}

	return int(idx), nil
}
