// Copyright 2026, the declstack authors. All rights reserved.

package synyaml

import (
	"fmt"
	"strconv"

	"github.com/declstack/declstack/pkg/diag"
	"github.com/declstack/declstack/pkg/source"
	"gopkg.in/yaml.v3"
)

// Decode parses the text already registered in arena under file into a
// synyaml.Node tree. A nil Node with errors is returned for malformed YAML;
// the caller (the preprocessor, §4.3) is expected to have already validated
// that rendering produced parseable YAML, so decode errors here are
// unexpected and reported as-is.
func Decode(arena *source.Arena, file source.FileID) (Node, *diag.Bag) {
	bag := &diag.Bag{}
	text := arena.File(file).Text

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		bag.Append(diag.Errorf("invalid YAML: %v", err))
		return nil, bag
	}
	if len(doc.Content) == 0 {
		return Null(source.Span{File: file}), bag
	}

	d := &decoder{arena: arena, file: file, bag: bag}
	return d.node(doc.Content[0]), bag
}

type decoder struct {
	arena *source.Arena
	file  source.FileID
	bag   *diag.Bag
}

func (d *decoder) span(n *yaml.Node) source.Span {
	start := d.arena.Offset(d.file, n.Line, n.Column)
	end := start + len(n.Value)
	if end < start {
		end = start
	}
	return source.Span{File: d.file, Start: start, End: end}
}

func (d *decoder) node(n *yaml.Node) Node {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(d.span(n))
		}
		return d.node(n.Content[0])
	case yaml.AliasNode:
		return d.node(n.Alias)
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.SequenceNode:
		elems := make([]Node, len(n.Content))
		for i, c := range n.Content {
			elems[i] = d.node(c)
		}
		return List(d.span(n), elems...)
	case yaml.MappingNode:
		entries := make([]ObjectProperty, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			keyStr, ok := d.node(keyNode).(*StringNode)
			if !ok {
				d.bag.Append(diag.At(diag.Error, d.span(keyNode), "mapping keys must be strings", ""))
				continue
			}
			entries = append(entries, ObjectProperty{
				Span:  d.span(keyNode).Merge(d.span(valNode)),
				Key:   keyStr,
				Value: d.node(valNode),
			})
		}
		return Object(d.span(n), entries...)
	default:
		d.bag.Append(diag.At(diag.Error, d.span(n), fmt.Sprintf("unexpected YAML node kind %v", n.Kind), ""))
		return Null(d.span(n))
	}
}

func (d *decoder) scalar(n *yaml.Node) Node {
	sp := d.span(n)
	switch n.Tag {
	case "!!null":
		return Null(sp)
	case "!!bool":
		v, err := strconv.ParseBool(n.Value)
		if err != nil {
			d.bag.Append(diag.At(diag.Error, sp, "invalid boolean literal", err.Error()))
			return Null(sp)
		}
		return Boolean(sp, v)
	case "!!int", "!!float":
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			d.bag.Append(diag.At(diag.Error, sp, "invalid numeric literal", err.Error()))
			return Null(sp)
		}
		return Number(sp, v)
	default:
		return String(sp, n.Value)
	}
}
